package sessionmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/repository"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/websocket"
)

// AnswerProcessor отвечает за прием и оценку ответов игроков
type AnswerProcessor struct {
	config *Config
	deps   *Dependencies
}

// NewAnswerProcessor создает новый процессор ответов
func NewAnswerProcessor(config *Config, deps *Dependencies) *AnswerProcessor {
	return &AnswerProcessor{
		config: config,
		deps:   deps,
	}
}

// AnswerResult — результат обработки ответа, возвращаемый клиенту
type AnswerResult struct {
	QuestionID     uint  `json:"question_id"`
	SelectedOption int   `json:"selected_option"`
	IsCorrect      bool  `json:"is_correct"`
	Points         int   `json:"points"`
	ResponseTimeMs int64 `json:"response_time_ms"`
	// AlreadyAnswered выставляется при повторной отправке: ответ уже
	// записан ранее, очки не начислялись второй раз
	AlreadyAnswered bool `json:"already_answered"`
}

// SubmitAnswer записывает ответ игрока на активный вопрос сессии.
//
// Гарантия at-most-once на пару (игрок, вопрос) держится на двух уровнях:
// Redis SETNX как быстрый заслон от повторных кликов и unique index в
// Postgres как финальный арбитр. Повторная отправка (в т.ч. ретрай после
// сетевой ошибки, когда первая запись прошла) возвращает ErrConflict
// с заполненным AnswerResult уже записанного ответа — клиент трактует
// это как "уже отвечено", а не как сбой.
func (ap *AnswerProcessor) SubmitAnswer(
	ctx context.Context,
	sessionID uint,
	questionID uint,
	userID uint,
	selectedOption int,
	timeTakenMs int64,
) (*AnswerResult, error) {
	if timeTakenMs < 0 {
		return nil, fmt.Errorf("%w: time_taken_ms must be >= 0", apperrors.ErrValidation)
	}

	// -------------------- Проверки состояния --------------------

	session, err := ap.deps.SessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsEnded() {
		// Терминальное состояние: данные не мутируются
		return nil, fmt.Errorf("%w: session #%d has ended", apperrors.ErrStaleState, sessionID)
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("%w: session #%d is not active", apperrors.ErrStaleState, sessionID)
	}

	question, err := ap.deps.QuestionRepo.GetByID(questionID)
	if err != nil {
		return nil, err
	}
	if question.SessionID != sessionID {
		return nil, fmt.Errorf("%w: question #%d does not belong to session #%d",
			apperrors.ErrNotFound, questionID, sessionID)
	}
	if question.Position != session.CurrentIndex {
		// Вопрос уже сменился — клиенту нужно перечитать снапшот
		log.Printf("[AnswerProcessor] Ответ на неактуальный вопрос: user #%d ответил на позицию %d, текущая %d (сессия #%d)",
			userID, question.Position, session.CurrentIndex, sessionID)
		return nil, fmt.Errorf("%w: question #%d is no longer active", apperrors.ErrStaleState, questionID)
	}
	if !question.IsStarted() {
		return nil, fmt.Errorf("internal error: active question #%d has no start time", questionID)
	}
	if !question.IsValidOption(selectedOption) {
		return nil, fmt.Errorf("%w: option %d is out of range for question #%d",
			apperrors.ErrValidation, selectedOption, questionID)
	}

	player, err := ap.deps.PlayerRepo.GetBySessionAndUser(sessionID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: user #%d is not a player of session #%d",
				apperrors.ErrNotFound, userID, sessionID)
		}
		return nil, err
	}
	if !player.IsPlaying {
		return nil, fmt.Errorf("%w: spectators cannot submit answers", apperrors.ErrForbidden)
	}

	// -------------------- Серверное время ответа --------------------

	// Время ответа считаем по серверным часам от started_at вопроса:
	// клиентское time_taken_ms не авторитетно для начисления очков.
	serverReceiveTimeMs := time.Now().UnixMilli()
	responseTimeMs := serverReceiveTimeMs - question.StartedAt.UnixMilli()
	if responseTimeMs < 0 {
		responseTimeMs = 0
	}

	// Просроченный ответ (после дедлайна с сетевым допуском) отклоняется
	// как stale — клиент синхронизируется со следующим вопросом
	if question.IsExpired(serverReceiveTimeMs) {
		log.Printf("[AnswerProcessor] Ответ user #%d на вопрос #%d получен после дедлайна (%d мс)",
			userID, questionID, responseTimeMs)
		return nil, fmt.Errorf("%w: answer window for question #%d has closed",
			apperrors.ErrStaleState, questionID)
	}

	isCorrect := question.IsCorrect(selectedOption)
	points := question.CalculatePoints(isCorrect, responseTimeMs)

	// -------------------- Быстрый заслон (Redis) --------------------

	guardKey := fmt.Sprintf("session:%d:player:%d:question:%d:answered", sessionID, player.ID, questionID)
	acquired, err := ap.deps.CacheRepo.SetNX(guardKey, "1", ap.config.AnswerGuardTTL)
	if err != nil {
		// Ошибка Redis не блокирует прием ответа: финальный арбитр — база
		log.Printf("[AnswerProcessor] WARNING: Ошибка Redis при установке guard-ключа %s: %v", guardKey, err)
		acquired = true
	}
	if !acquired {
		return ap.alreadyAnsweredResult(player.ID, questionID)
	}

	// -------------------- Сохранение (DB first) --------------------

	answer := &entity.Answer{
		SessionID:      sessionID,
		PlayerID:       player.ID,
		QuestionID:     questionID,
		SelectedOption: selectedOption,
		IsCorrect:      isCorrect,
		ResponseTimeMs: responseTimeMs,
		Points:         points,
	}

	if err := ap.deps.AnswerRepo.SaveWithScore(answer); err != nil {
		if errors.Is(err, repository.ErrDuplicateAnswer) {
			// Guard-ключ потерян (например, Redis перезапущен), но база
			// дубликат не пропустила
			log.Printf("[AnswerProcessor] Повторный ответ user #%d на вопрос #%d отсечен по DB unique constraint",
				userID, questionID)
			return ap.alreadyAnsweredResult(player.ID, questionID)
		}

		// Ответ не записан — снимаем guard, чтобы ретрай клиента прошел
		if delErr := ap.deps.CacheRepo.Delete(guardKey); delErr != nil {
			log.Printf("[AnswerProcessor] WARNING: Не удалось снять guard-ключ %s после ошибки сохранения: %v", guardKey, delErr)
		}
		log.Printf("[AnswerProcessor] CRITICAL: Ошибка при сохранении ответа user #%d на вопрос #%d: %v",
			userID, questionID, err)
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}

	log.Printf("[AnswerProcessor] Ответ user #%d на вопрос #%d записан: correct=%t, points=%d, time=%d мс",
		userID, questionID, isCorrect, points, responseTimeMs)

	// -------------------- Пост-обработка --------------------

	// Оповещаем комнату сессии: клиенты перечитают снапшот
	// (количество ответивших, лидерборд). Правильный вариант не раскрывается.
	recordedEvent := websocket.Event{
		Type: websocket.EventAnswerRecorded,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"question_id": questionID,
			"player_id":   player.ID,
		},
	}
	if errSend := ap.deps.Feed.BroadcastToSession(sessionID, recordedEvent); errSend != nil {
		// Ответ уже записан, ошибка рассылки не фатальна
		log.Printf("[AnswerProcessor] Ошибка при рассылке answer:recorded для сессии #%d: %v", sessionID, errSend)
	}

	return &AnswerResult{
		QuestionID:     questionID,
		SelectedOption: selectedOption,
		IsCorrect:      isCorrect,
		Points:         points,
		ResponseTimeMs: responseTimeMs,
	}, nil
}

// alreadyAnsweredResult возвращает ErrConflict вместе с ранее записанным
// ответом, чтобы клиент мог молча синхронизировать свое состояние
func (ap *AnswerProcessor) alreadyAnsweredResult(playerID uint, questionID uint) (*AnswerResult, error) {
	existing, err := ap.deps.AnswerRepo.GetByPlayerAndQuestion(playerID, questionID)
	if err != nil {
		// Guard сработал, но записи еще не видно — отдаем конфликт без деталей
		return nil, fmt.Errorf("%w: answer already submitted", apperrors.ErrConflict)
	}
	result := &AnswerResult{
		QuestionID:      questionID,
		SelectedOption:  existing.SelectedOption,
		IsCorrect:       existing.IsCorrect,
		Points:          existing.Points,
		ResponseTimeMs:  existing.ResponseTimeMs,
		AlreadyAnswered: true,
	}
	return result, fmt.Errorf("%w: answer already submitted", apperrors.ErrConflict)
}
