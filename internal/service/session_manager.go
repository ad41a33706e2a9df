package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/repository"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/service/sessionmanager"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/websocket"
)

// SessionManager координирует работу компонентов живой квиз-сессии
type SessionManager struct {
	// Компоненты системы
	answerProcessor *sessionmanager.AnswerProcessor
	advancer        *sessionmanager.Advancer
	autopilot       *sessionmanager.Autopilot

	// Репозитории для прямого доступа
	sessionRepo  repository.SessionRepository
	questionRepo repository.QuestionRepository
	playerRepo   repository.PlayerRepository
	cacheRepo    repository.CacheRepository

	feed sessionmanager.Feed

	emailService EmailService

	// Контекст для управления жизненным циклом
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionManager создает новый экземпляр менеджера сессий
func NewSessionManager(
	sessionRepo repository.SessionRepository,
	questionRepo repository.QuestionRepository,
	playerRepo repository.PlayerRepository,
	answerRepo repository.AnswerRepository,
	cacheRepo repository.CacheRepository,
	feed sessionmanager.Feed,
	emailService EmailService,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())

	config := sessionmanager.DefaultConfig()

	deps := &sessionmanager.Dependencies{
		SessionRepo:  sessionRepo,
		QuestionRepo: questionRepo,
		PlayerRepo:   playerRepo,
		AnswerRepo:   answerRepo,
		CacheRepo:    cacheRepo,
		Feed:         feed,
		Config:       config,
	}

	answerProcessor := sessionmanager.NewAnswerProcessor(config, deps)
	advancer := sessionmanager.NewAdvancer(config, deps)
	autopilot := sessionmanager.NewAutopilot(config, deps, advancer)

	sm := &SessionManager{
		answerProcessor: answerProcessor,
		advancer:        advancer,
		autopilot:       autopilot,
		sessionRepo:     sessionRepo,
		questionRepo:    questionRepo,
		playerRepo:      playerRepo,
		cacheRepo:       cacheRepo,
		feed:            feed,
		emailService:    emailService,
		ctx:             ctx,
		cancel:          cancel,
	}

	// Запускаем слушателя событий
	go sm.handleEvents()

	// Восстанавливаем автопилот по активным auto-сессиям после рестарта
	if err := autopilot.Restore(ctx); err != nil {
		log.Printf("[SessionManager] Ошибка при восстановлении автопилота: %v", err)
	}

	log.Println("[SessionManager] Менеджер сессий успешно инициализирован")
	return sm
}

// handleEvents обрабатывает события от компонентов
func (sm *SessionManager) handleEvents() {
	endedCh := sm.advancer.SessionEnded()

	for {
		select {
		case <-sm.ctx.Done():
			log.Println("[SessionManager] Завершение работы слушателя событий")
			return

		case sessionID := <-endedCh:
			go sm.handleSessionEnded(sessionID)
		}
	}
}

// handleSessionEnded выполняет пост-обработку завершенной сессии
func (sm *SessionManager) handleSessionEnded(sessionID uint) {
	sm.autopilot.Stop(sessionID)

	session, err := sm.sessionRepo.GetByID(sessionID)
	if err != nil {
		log.Printf("[SessionManager] Сессия #%d завершена, но не прочитана: %v", sessionID, err)
		return
	}

	leaderboard, err := sm.playerRepo.GetLeaderboard(sessionID)
	if err != nil {
		log.Printf("[SessionManager] Ошибка чтения лидерборда сессии #%d: %v", sessionID, err)
		return
	}

	// После ended счет финален: кешируем лидерборд, чтобы чтения
	// завершенной сессии не ходили в базу
	if err := sm.cacheRepo.SetJSON(finalLeaderboardKey(sessionID), leaderboard, finalLeaderboardTTL); err != nil {
		log.Printf("[SessionManager] Не удалось закешировать лидерборд сессии #%d: %v", sessionID, err)
	}

	// Roster в Redis свое отслужил, подчищаем
	if participants, err := sm.cacheRepo.SMembers(sessionParticipantsKey(sessionID)); err == nil {
		log.Printf("[SessionManager] Сессия #%d завершена, участников за все время: %d", sessionID, len(participants))
	}
	if err := sm.cacheRepo.Delete(sessionParticipantsKey(sessionID)); err != nil {
		log.Printf("[SessionManager] Не удалось удалить roster сессии #%d: %v", sessionID, err)
	}

	// Письмо с итогами — best effort, на исход сессии не влияет
	if sm.emailService != nil {
		if err := sm.emailService.SendSessionSummary(sm.ctx, session, leaderboard); err != nil {
			log.Printf("[SessionManager] Не удалось отправить итоги сессии #%d: %v", sessionID, err)
		}
	}
}

// StartSession переводит сессию из waiting в active и активирует первый
// вопрос. Только ведущий может стартовать сессию.
func (sm *SessionManager) StartSession(ctx context.Context, sessionID uint, userID uint) (*entity.Session, error) {
	session, err := sm.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsHost(userID) {
		return nil, fmt.Errorf("%w: only the host can start session #%d", apperrors.ErrForbidden, sessionID)
	}
	if session.IsEnded() {
		return nil, fmt.Errorf("%w: session #%d has ended", apperrors.ErrStaleState, sessionID)
	}
	if session.QuestionCount == 0 {
		return nil, fmt.Errorf("%w: session #%d has no questions", apperrors.ErrValidation, sessionID)
	}

	// CAS waiting → active: двойной старт получает ErrConflict
	if err := sm.sessionRepo.AtomicStart(sessionID); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: session #%d has already started", apperrors.ErrConflict, sessionID)
		}
		return nil, err
	}

	first, err := sm.sessionRepo.GetWithQuestions(sessionID)
	if err != nil {
		return nil, err
	}
	if len(first.Questions) == 0 {
		return nil, fmt.Errorf("session #%d started but has no questions loaded", sessionID)
	}

	question := &first.Questions[0]
	question, err = sm.questionRepo.ActivateOnce(question.ID)
	if err != nil {
		return nil, err
	}

	log.Printf("[SessionManager] Сессия #%d стартовала, вопрос #%d активен", sessionID, question.ID)

	startedEvent := websocket.Event{
		Type: websocket.EventSessionStarted,
		Data: map[string]interface{}{
			"session_id":       sessionID,
			"question_id":      question.ID,
			"position":         0,
			"total_questions":  first.QuestionCount,
			"text":             question.Text,
			"options":          question.Options,
			"time_limit_sec":   question.TimeLimitSec,
			"start_time":       question.StartedAt.UnixMilli(),
			"server_timestamp": time.Now().UnixMilli(),
		},
	}
	if err := sm.feed.BroadcastToSession(sessionID, startedEvent); err != nil {
		log.Printf("[SessionManager] Ошибка при рассылке session:started для сессии #%d: %v", sessionID, err)
	}

	if first.IsAutoAdvance() {
		sm.autopilot.Start(sm.ctx, sessionID)
	}

	return first, nil
}

// SubmitAnswer фиксирует ответ игрока на текущий вопрос
func (sm *SessionManager) SubmitAnswer(ctx context.Context, sessionID, questionID, userID uint, selectedOption int, timeTakenMs int64) (*sessionmanager.AnswerResult, error) {
	return sm.answerProcessor.SubmitAnswer(ctx, sessionID, questionID, userID, selectedOption, timeTakenMs)
}

// AdvanceToNext переводит сессию к следующему вопросу
func (sm *SessionManager) AdvanceToNext(ctx context.Context, sessionID uint, userID uint) (*sessionmanager.AdvanceResult, error) {
	return sm.advancer.AdvanceToNext(ctx, sessionID, userID)
}

// AdvanceFallback — запасной путь перехода с ограниченными повторами
func (sm *SessionManager) AdvanceFallback(ctx context.Context, sessionID uint, userID uint) (*sessionmanager.AdvanceResult, error) {
	return sm.advancer.AdvanceFallback(ctx, sessionID, userID)
}

// EndSession завершает сессию по действию ведущего
func (sm *SessionManager) EndSession(ctx context.Context, sessionID uint, userID uint) (*sessionmanager.AdvanceResult, error) {
	return sm.advancer.EndSession(ctx, sessionID, userID)
}

// Shutdown корректно останавливает менеджер и все циклы автопилота
func (sm *SessionManager) Shutdown() {
	log.Println("[SessionManager] Остановка менеджера сессий")
	sm.autopilot.StopAll()
	sm.cancel()
}
