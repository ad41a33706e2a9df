package sessionmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/websocket"
)

// Advancer отвечает за переход сессии между вопросами и ее завершение
type Advancer struct {
	config *Config
	deps   *Dependencies

	// Канал для сигнализации о завершении сессии (слушает координатор)
	sessionEndedCh chan uint
}

// NewAdvancer создает новый компонент перехода между вопросами
func NewAdvancer(config *Config, deps *Dependencies) *Advancer {
	return &Advancer{
		config:         config,
		deps:           deps,
		sessionEndedCh: make(chan uint, 16),
	}
}

// SessionEnded возвращает канал уведомлений о завершении сессий
func (a *Advancer) SessionEnded() <-chan uint {
	return a.sessionEndedCh
}

// AdvanceResult описывает исход операции advance
type AdvanceResult struct {
	SessionID uint `json:"session_id"`
	// NewIndex — позиция активного вопроса после перехода (-1, если сессия завершилась)
	NewIndex int `json:"new_index"`
	// Ended выставляется, когда advance с последнего вопроса завершил сессию
	Ended bool `json:"ended"`
	// AlreadyAdvanced выставляется, когда указатель сдвинул кто-то другой:
	// для вызывающего это no-op, а не ошибка
	AlreadyAdvanced bool `json:"already_advanced"`
}

// AdvanceToNext переводит сессию к следующему вопросу или завершает ее,
// если текущий вопрос был последним. Только ведущий может вызывать advance.
//
// Идемпотентность: сдвиг указателя — CAS по current_index в базе. Если два
// устройства ведущего (или ретрай) вызвали advance одновременно, переход
// выполнит ровно один вызов; второй получит AlreadyAdvanced и не
// перескочит вопрос.
func (a *Advancer) AdvanceToNext(ctx context.Context, sessionID uint, userID uint) (*AdvanceResult, error) {
	return a.advance(ctx, sessionID, userID, false)
}

// AdvanceDeadline — внутренний путь автопилота: переход по истечении
// таймера раунда, без проверки раннего advance
func (a *Advancer) AdvanceDeadline(ctx context.Context, sessionID uint) (*AdvanceResult, error) {
	session, err := a.deps.SessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	return a.advance(ctx, sessionID, session.HostUserID, true)
}

func (a *Advancer) advance(ctx context.Context, sessionID uint, userID uint, deadlineElapsed bool) (*AdvanceResult, error) {
	session, err := a.deps.SessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsEnded() {
		return nil, fmt.Errorf("%w: session #%d has ended", apperrors.ErrStaleState, sessionID)
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("%w: session #%d has not started", apperrors.ErrStaleState, sessionID)
	}
	if !session.IsHost(userID) {
		return nil, fmt.Errorf("%w: only the host can advance session #%d", apperrors.ErrForbidden, sessionID)
	}

	fromIndex := session.CurrentIndex
	current, err := a.deps.QuestionRepo.GetBySessionAndPosition(sessionID, fromIndex)
	if err != nil {
		return nil, err
	}

	// Указатель сдвинут, но вопрос не активирован: предыдущий advance упал
	// между CAS и ActivateOnce. Ретрай достраивает тот переход, а не
	// перескакивает вопрос, на который никто не мог ответить
	if current.StartedAt == nil {
		current, err = a.deps.QuestionRepo.ActivateOnce(current.ID)
		if err != nil {
			return nil, err
		}
		log.Printf("[Advancer] Сессия #%d: вопрос %d (#%d) активирован повторным вызовом, старт %d",
			sessionID, fromIndex, current.ID, current.StartedAt.UnixMilli())
		a.broadcastAdvanced(session, current, fromIndex)
		return &AdvanceResult{SessionID: sessionID, NewIndex: fromIndex}, nil
	}

	// Ранний advance в manual режиме разрешен только когда все играющие
	// уже ответили; иначе — только после дедлайна раунда
	if !deadlineElapsed && current.RemainingMs(time.Now().UnixMilli()) > 0 {
		playing, err := a.deps.PlayerRepo.CountPlaying(sessionID)
		if err != nil {
			return nil, err
		}
		answered, err := a.deps.AnswerRepo.CountPlayingAnswers(sessionID, current.ID)
		if err != nil {
			return nil, err
		}
		if answered < playing {
			return nil, fmt.Errorf("%w: round still running, %d of %d players answered",
				apperrors.ErrValidation, answered, playing)
		}
	}

	// Последний вопрос: advance завершает сессию
	if session.OnLastQuestion() {
		return a.endSession(session)
	}

	// CAS по current_index — единственная точка сдвига указателя
	if err := a.deps.SessionRepo.AtomicAdvance(sessionID, fromIndex); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			log.Printf("[Advancer] Сессия #%d: указатель уже сдвинут с позиции %d другим вызовом", sessionID, fromIndex)
			fresh, freshErr := a.deps.SessionRepo.GetByID(sessionID)
			if freshErr != nil {
				return nil, freshErr
			}
			return &AdvanceResult{
				SessionID:       sessionID,
				NewIndex:        fresh.CurrentIndex,
				Ended:           fresh.IsEnded(),
				AlreadyAdvanced: true,
			}, nil
		}
		return nil, err
	}

	// Активируем следующий вопрос: started_at проставляется ровно один раз
	// и служит якорем отсчета времени для всех клиентов
	next, err := a.deps.QuestionRepo.GetBySessionAndPosition(sessionID, fromIndex+1)
	if err != nil {
		return nil, fmt.Errorf("session #%d advanced but next question missing: %w", sessionID, err)
	}
	next, err = a.deps.QuestionRepo.ActivateOnce(next.ID)
	if err != nil {
		return nil, err
	}

	log.Printf("[Advancer] Сессия #%d: переход к вопросу %d (#%d), старт %d",
		sessionID, fromIndex+1, next.ID, next.StartedAt.UnixMilli())

	a.broadcastAdvanced(session, next, fromIndex+1)

	return &AdvanceResult{
		SessionID: sessionID,
		NewIndex:  fromIndex + 1,
	}, nil
}

// AdvanceFallback — запасной путь перехода при сбое основного вызова.
// Это ретрай той же операции: все проверки AdvanceToNext, включая запрет
// раннего advance при идущем таймере, действуют и здесь. Ограниченное
// число попыток с фиксированной паузой (бесконечный ретрай недопустим):
// потеря синхронизации посреди квиза бьет по всем игрокам, поэтому клиент
// ведущего дергает этот путь прежде, чем показать ошибку.
func (a *Advancer) AdvanceFallback(ctx context.Context, sessionID uint, userID uint) (*AdvanceResult, error) {
	var lastErr error

	for attempt := 0; attempt < a.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := a.advance(ctx, sessionID, userID, false)
		if err == nil {
			if attempt > 0 {
				log.Printf("[Advancer] Fallback-advance сессии #%d успешен с попытки %d", sessionID, attempt+1)
			}
			return result, nil
		}

		// Не-транзиентные ошибки не ретраим. ErrValidation здесь означает,
		// что раунд еще идет и не все ответили: повтор ничего не изменит
		if errors.Is(err, apperrors.ErrForbidden) ||
			errors.Is(err, apperrors.ErrNotFound) ||
			errors.Is(err, apperrors.ErrStaleState) ||
			errors.Is(err, apperrors.ErrValidation) {
			return nil, err
		}

		lastErr = err
		log.Printf("[Advancer] Fallback-advance сессии #%d: попытка %d не удалась: %v", sessionID, attempt+1, err)

		select {
		case <-time.After(a.config.RetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("fallback advance for session #%d failed after %d attempts: %w",
		sessionID, a.config.MaxRetries, lastErr)
}

// EndSession завершает сессию по явному действию ведущего
func (a *Advancer) EndSession(ctx context.Context, sessionID uint, userID uint) (*AdvanceResult, error) {
	session, err := a.deps.SessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsEnded() {
		return nil, fmt.Errorf("%w: session #%d has already ended", apperrors.ErrStaleState, sessionID)
	}
	if !session.IsHost(userID) {
		return nil, fmt.Errorf("%w: only the host can end session #%d", apperrors.ErrForbidden, sessionID)
	}

	// Завершение из waiting допустимо: ведущий распускает несостоявшуюся сессию
	if session.IsWaiting() {
		session.Status = entity.SessionStatusEnded
		now := time.Now()
		session.EndedAt = &now
		if err := a.deps.SessionRepo.Update(session); err != nil {
			return nil, err
		}
		a.notifyEnded(session)
		return &AdvanceResult{SessionID: sessionID, NewIndex: entity.NoCurrentQuestion, Ended: true}, nil
	}

	return a.endSession(session)
}

// endSession выполняет терминальный переход active → ended и финализирует ранги
func (a *Advancer) endSession(session *entity.Session) (*AdvanceResult, error) {
	if err := a.deps.SessionRepo.AtomicEnd(session.ID); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Кто-то уже завершил — идемпотентный no-op
			return &AdvanceResult{
				SessionID:       session.ID,
				NewIndex:        session.CurrentIndex,
				Ended:           true,
				AlreadyAdvanced: true,
			}, nil
		}
		return nil, err
	}

	// После ended счет финален: фиксируем ранги для лидерборда
	if err := a.deps.PlayerRepo.FinalizeRanks(session.ID); err != nil {
		// Сессия уже завершена, ранги можно пересчитать при чтении лидерборда
		log.Printf("[Advancer] WARNING: Не удалось зафиксировать ранги сессии #%d: %v", session.ID, err)
	}

	log.Printf("[Advancer] Сессия #%d завершена", session.ID)
	a.notifyEnded(session)

	return &AdvanceResult{
		SessionID: session.ID,
		NewIndex:  session.CurrentIndex,
		Ended:     true,
	}, nil
}

func (a *Advancer) notifyEnded(session *entity.Session) {
	endedEvent := websocket.Event{
		Type: websocket.EventSessionEnded,
		Data: map[string]interface{}{
			"session_id": session.ID,
			"title":      session.Title,
			"ended_at":   time.Now().UnixMilli(),
		},
	}
	if err := a.deps.Feed.BroadcastToSession(session.ID, endedEvent); err != nil {
		log.Printf("[Advancer] Ошибка при рассылке session:ended для сессии #%d: %v", session.ID, err)
	}

	// Сигнализируем координатору (отмена автопилота, письмо ведущему).
	// Неблокирующая отправка на случай переполнения канала.
	select {
	case a.sessionEndedCh <- session.ID:
	default:
		log.Printf("[Advancer] WARNING: канал sessionEndedCh переполнен, сигнал по сессии #%d пропущен", session.ID)
	}
}

// broadcastAdvanced рассылает событие перехода к новому вопросу.
// Правильный вариант ответа в событие не попадает.
func (a *Advancer) broadcastAdvanced(session *entity.Session, question *entity.Question, position int) {
	advancedEvent := websocket.Event{
		Type: websocket.EventQuestionAdvanced,
		Data: map[string]interface{}{
			"session_id":       session.ID,
			"question_id":      question.ID,
			"position":         position,
			"total_questions":  session.QuestionCount,
			"text":             question.Text,
			"options":          question.Options,
			"time_limit_sec":   question.TimeLimitSec,
			"start_time":       question.StartedAt.UnixMilli(),
			"server_timestamp": time.Now().UnixMilli(),
		},
	}
	if err := a.deps.Feed.BroadcastToSession(session.ID, advancedEvent); err != nil {
		log.Printf("[Advancer] Ошибка при рассылке question:advanced для сессии #%d: %v", session.ID, err)
	}
}
