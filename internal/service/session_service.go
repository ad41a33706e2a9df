package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/repository"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/service/sessionmanager"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/websocket"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/pkg/auth"
)

// Ключ Redis-последовательности гостевых идентификаторов
const guestSeqKey = "guest:user:seq"

// SessionService предоставляет операции жизненного цикла сессии вне
// горячего пути (создание, вопросы, вход игроков, снапшоты, лидерборд)
type SessionService struct {
	sessionRepo  repository.SessionRepository
	questionRepo repository.QuestionRepository
	playerRepo   repository.PlayerRepository
	answerRepo   repository.AnswerRepository
	cacheRepo    repository.CacheRepository
	tokenService *auth.TokenService
	feed         sessionmanager.Feed
	config       *sessionmanager.Config
}

// NewSessionService создает новый сервис сессий
func NewSessionService(
	sessionRepo repository.SessionRepository,
	questionRepo repository.QuestionRepository,
	playerRepo repository.PlayerRepository,
	answerRepo repository.AnswerRepository,
	cacheRepo repository.CacheRepository,
	tokenService *auth.TokenService,
	feed sessionmanager.Feed,
) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		questionRepo: questionRepo,
		playerRepo:   playerRepo,
		answerRepo:   answerRepo,
		cacheRepo:    cacheRepo,
		tokenService: tokenService,
		feed:         feed,
		config:       sessionmanager.DefaultConfig(),
	}
}

// CreateSessionInput — параметры создания сессии
type CreateSessionInput struct {
	Title       string
	HostEmail   string
	HostName    string
	AdvanceMode string
	PIN         string
}

// CreateSessionResult — созданная сессия и токен ведущего
type CreateSessionResult struct {
	Session *entity.Session `json:"session"`
	Token   string          `json:"token"`
}

// CreateSession создает сессию в статусе waiting и выдает ведущему токен.
// Код сессии — короткий, пригодный для ввода с экрана.
func (s *SessionService) CreateSession(input CreateSessionInput) (*CreateSessionResult, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}

	mode := input.AdvanceMode
	if mode == "" {
		mode = entity.AdvanceModeManual
	}
	if mode != entity.AdvanceModeManual && mode != entity.AdvanceModeAuto {
		return nil, fmt.Errorf("%w: unknown advance mode %q", apperrors.ErrValidation, mode)
	}

	hostUserID, err := s.nextGuestID()
	if err != nil {
		return nil, err
	}

	var pinHash string
	if input.PIN != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.PIN), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash session PIN: %w", err)
		}
		pinHash = string(hash)
	}

	session := &entity.Session{
		Code:         newSessionCode(),
		Title:        title,
		HostUserID:   hostUserID,
		HostEmail:    strings.TrimSpace(input.HostEmail),
		PINHash:      pinHash,
		AdvanceMode:  mode,
		Status:       entity.SessionStatusWaiting,
		CurrentIndex: entity.NoCurrentQuestion,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}

	// Ведущий — наблюдатель: в roster входит, в лидерборд не попадает
	hostName := strings.TrimSpace(input.HostName)
	if hostName == "" {
		hostName = "Ведущий"
	}
	host := &entity.Player{
		SessionID:   session.ID,
		UserID:      hostUserID,
		DisplayName: hostName,
		IsPlaying:   false,
	}
	if err := s.playerRepo.Create(host); err != nil {
		return nil, err
	}

	token, err := s.tokenService.GenerateToken(hostUserID, session.ID, hostName)
	if err != nil {
		return nil, err
	}

	log.Printf("[SessionService] Создана сессия #%d (код %s, режим %s)", session.ID, session.Code, mode)
	return &CreateSessionResult{Session: session, Token: token}, nil
}

// newSessionCode генерирует 8-символьный код сессии
func newSessionCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:8])
}

// nextGuestID выдает следующий гостевой идентификатор из Redis-последовательности
func (s *SessionService) nextGuestID() (uint, error) {
	id, err := s.cacheRepo.Increment(guestSeqKey)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate guest id: %w", err)
	}
	return uint(id), nil
}

// QuestionInput — один вопрос при добавлении в сессию
type QuestionInput struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	TimeLimitSec  int      `json:"time_limit_sec"`
	PointValue    int      `json:"point_value"`
}

// AddQuestions добавляет вопросы в хвост сессии. Разрешено только
// ведущему и только пока сессия в статусе waiting.
func (s *SessionService) AddQuestions(sessionID uint, userID uint, inputs []QuestionInput) ([]entity.Question, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsHost(userID) {
		return nil, fmt.Errorf("%w: only the host can add questions to session #%d", apperrors.ErrForbidden, sessionID)
	}
	if !session.IsWaiting() {
		return nil, fmt.Errorf("%w: questions can only be added before session #%d starts", apperrors.ErrStaleState, sessionID)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", apperrors.ErrValidation)
	}
	if session.QuestionCount+len(inputs) > s.config.MaxQuestionsPerSession {
		return nil, fmt.Errorf("%w: session holds at most %d questions", apperrors.ErrValidation, s.config.MaxQuestionsPerSession)
	}

	questions := make([]entity.Question, 0, len(inputs))
	for i, in := range inputs {
		q, err := buildQuestion(sessionID, session.QuestionCount+i, in)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, *q)
	}

	if err := s.questionRepo.CreateBatch(questions); err != nil {
		return nil, err
	}
	if err := s.sessionRepo.IncrementQuestionCount(sessionID, len(questions)); err != nil {
		return nil, err
	}

	log.Printf("[SessionService] В сессию #%d добавлено %d вопросов", sessionID, len(questions))
	return questions, nil
}

func buildQuestion(sessionID uint, position int, in QuestionInput) (*entity.Question, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: question text is required", apperrors.ErrValidation)
	}
	if len(in.Options) < 2 {
		return nil, fmt.Errorf("%w: at least two options are required", apperrors.ErrValidation)
	}
	if in.CorrectOption < 0 || in.CorrectOption >= len(in.Options) {
		return nil, fmt.Errorf("%w: correct option index out of range", apperrors.ErrValidation)
	}

	timeLimit := in.TimeLimitSec
	if timeLimit <= 0 {
		timeLimit = 30
	}
	points := in.PointValue
	if points <= 0 {
		points = 100
	}

	return &entity.Question{
		SessionID:     sessionID,
		Position:      position,
		Text:          text,
		Options:       entity.StringArray(in.Options),
		CorrectOption: in.CorrectOption,
		TimeLimitSec:  timeLimit,
		PointValue:    points,
	}, nil
}

// JoinSessionInput — параметры входа игрока
type JoinSessionInput struct {
	Code        string
	PIN         string
	DisplayName string
	Avatar      string
	// UserID > 0 означает повторный вход игрока с уже выданным токеном
	UserID uint
}

// JoinSessionResult — игрок, сессия и гостевой токен
type JoinSessionResult struct {
	Session *entity.Session `json:"session"`
	Player  *entity.Player  `json:"player"`
	Token   string          `json:"token,omitempty"`
}

// JoinSession вводит игрока в сессию по коду. Повторный вход с тем же
// токеном идемпотентен: игрок возвращается в сессию с накопленным счетом.
// Вход открыт и в waiting, и в active (поздний игрок догоняет через снапшот).
func (s *SessionService) JoinSession(input JoinSessionInput) (*JoinSessionResult, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, fmt.Errorf("%w: session code is required", apperrors.ErrValidation)
	}

	session, err := s.sessionRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if session.IsEnded() {
		return nil, fmt.Errorf("%w: session %s has ended", apperrors.ErrStaleState, code)
	}

	// Повторный вход: игрок уже в сессии, состояние не трогаем
	if input.UserID > 0 {
		player, err := s.playerRepo.GetBySessionAndUser(session.ID, input.UserID)
		if err == nil {
			return &JoinSessionResult{Session: session, Player: player}, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	if session.HasPIN() {
		if err := bcrypt.CompareHashAndPassword([]byte(session.PINHash), []byte(input.PIN)); err != nil {
			return nil, fmt.Errorf("%w: invalid session PIN", apperrors.ErrUnauthorized)
		}
	}

	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", apperrors.ErrValidation)
	}

	userID, err := s.nextGuestID()
	if err != nil {
		return nil, err
	}

	player := &entity.Player{
		SessionID:   session.ID,
		UserID:      userID,
		DisplayName: name,
		Avatar:      strings.TrimSpace(input.Avatar),
		IsPlaying:   true,
	}
	if err := s.playerRepo.Create(player); err != nil {
		return nil, err
	}

	token, err := s.tokenService.GenerateToken(userID, session.ID, name)
	if err != nil {
		return nil, err
	}

	// Множество участников в Redis — быстрый roster для WS-слоя
	if err := s.cacheRepo.SAdd(sessionParticipantsKey(session.ID), userID); err != nil {
		log.Printf("[SessionService] Ошибка при добавлении игрока %d в roster сессии #%d: %v", userID, session.ID, err)
	}

	joinedEvent := websocket.Event{
		Type: websocket.EventPlayerJoined,
		Data: map[string]interface{}{
			"session_id":   session.ID,
			"player_id":    player.ID,
			"display_name": player.DisplayName,
			"avatar":       player.Avatar,
		},
	}
	if err := s.feed.BroadcastToSession(session.ID, joinedEvent); err != nil {
		log.Printf("[SessionService] Ошибка при рассылке player:joined для сессии #%d: %v", session.ID, err)
	}

	log.Printf("[SessionService] Игрок %q (#%d) вошел в сессию #%d", name, player.ID, session.ID)
	return &JoinSessionResult{Session: session, Player: player, Token: token}, nil
}

func sessionParticipantsKey(sessionID uint) string {
	return fmt.Sprintf("session:%d:participants", sessionID)
}

// Время жизни кеша финального лидерборда
const finalLeaderboardTTL = 24 * time.Hour

func finalLeaderboardKey(sessionID uint) string {
	return fmt.Sprintf("session:%d:leaderboard:final", sessionID)
}

// QuestionView — вопрос в снапшоте, без правильного варианта
type QuestionView struct {
	ID           uint     `json:"id"`
	Position     int      `json:"position"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	TimeLimitSec int      `json:"time_limit_sec"`
	StartTime    int64    `json:"start_time"`
	RemainingMs  int64    `json:"remaining_ms"`
}

// AnswerView — собственный ответ игрока на текущий вопрос
type AnswerView struct {
	QuestionID     uint  `json:"question_id"`
	SelectedOption int   `json:"selected_option"`
	IsCorrect      bool  `json:"is_correct"`
	Points         int   `json:"points"`
	ResponseTimeMs int64 `json:"response_time_ms"`
}

// Snapshot — авторитетное состояние сессии на один момент времени.
// Любой клиент, применив снапшот, отображает корректное состояние без
// истории пропущенных событий.
type Snapshot struct {
	SessionID       uint            `json:"session_id"`
	Code            string          `json:"code"`
	Title           string          `json:"title"`
	Status          string          `json:"status"`
	AdvanceMode     string          `json:"advance_mode"`
	CurrentIndex    int             `json:"current_index"`
	QuestionCount   int             `json:"question_count"`
	Question        *QuestionView   `json:"question,omitempty"`
	Players         []entity.Player `json:"players"`
	OwnAnswer       *AnswerView     `json:"own_answer,omitempty"`
	ServerTimestamp int64           `json:"server_timestamp"`
}

// GetSnapshot собирает снапшот сессии. Для userID > 0 включает
// собственный ответ игрока на текущий вопрос — клиент после переподключения
// видит, отвечал ли он уже.
func (s *SessionService) GetSnapshot(sessionID uint, userID uint) (*Snapshot, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}

	players, err := s.playerRepo.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}

	nowMs := time.Now().UnixMilli()
	snapshot := &Snapshot{
		SessionID:       session.ID,
		Code:            session.Code,
		Title:           session.Title,
		Status:          session.Status,
		AdvanceMode:     session.AdvanceMode,
		CurrentIndex:    session.CurrentIndex,
		QuestionCount:   session.QuestionCount,
		Players:         players,
		ServerTimestamp: nowMs,
	}

	if session.IsActive() && session.CurrentIndex >= 0 {
		question, err := s.questionRepo.GetBySessionAndPosition(sessionID, session.CurrentIndex)
		if err != nil {
			return nil, err
		}
		view := &QuestionView{
			ID:           question.ID,
			Position:     question.Position,
			Text:         question.Text,
			Options:      question.Options,
			TimeLimitSec: question.TimeLimitSec,
			RemainingMs:  question.RemainingMs(nowMs),
		}
		if question.StartedAt != nil {
			view.StartTime = question.StartedAt.UnixMilli()
		}
		snapshot.Question = view

		if userID > 0 {
			if player, err := s.playerRepo.GetBySessionAndUser(sessionID, userID); err == nil {
				if answer, err := s.answerRepo.GetByPlayerAndQuestion(player.ID, question.ID); err == nil {
					snapshot.OwnAnswer = &AnswerView{
						QuestionID:     answer.QuestionID,
						SelectedOption: answer.SelectedOption,
						IsCorrect:      answer.IsCorrect,
						Points:         answer.Points,
						ResponseTimeMs: answer.ResponseTimeMs,
					}
				}
			}
		}
	}

	return snapshot, nil
}

// GetLeaderboard возвращает играющих участников в детерминированном порядке.
// Для завершенной сессии сначала пробует кеш: финальный лидерборд записан
// туда при завершении и больше не меняется.
func (s *SessionService) GetLeaderboard(sessionID uint) ([]entity.Player, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsEnded() {
		var cached []entity.Player
		if err := s.cacheRepo.GetJSON(finalLeaderboardKey(sessionID), &cached); err == nil {
			return cached, nil
		}
	}
	return s.playerRepo.GetLeaderboard(sessionID)
}
