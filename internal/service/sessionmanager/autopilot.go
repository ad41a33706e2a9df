package sessionmanager

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

// Autopilot двигает сессии в режиме auto: по истечении таймера текущего
// вопроса плюс грейс-период он сам вызывает advance, пока сессия не
// завершится. На каждую сессию — своя горутина.
type Autopilot struct {
	config   *Config
	deps     *Dependencies
	advancer *Advancer

	// map[uint]context.CancelFunc — активные циклы автопилота по сессиям
	running sync.Map
}

// NewAutopilot создает новый автопилот
func NewAutopilot(config *Config, deps *Dependencies, advancer *Advancer) *Autopilot {
	return &Autopilot{
		config:   config,
		deps:     deps,
		advancer: advancer,
	}
}

// Start запускает цикл автопилота для сессии. Повторный Start для той же
// сессии — no-op.
func (ap *Autopilot) Start(ctx context.Context, sessionID uint) {
	loopCtx, cancel := context.WithCancel(ctx)
	if _, loaded := ap.running.LoadOrStore(sessionID, cancel); loaded {
		cancel()
		return
	}

	log.Printf("[Autopilot] Запуск автопилота для сессии #%d", sessionID)
	go ap.run(loopCtx, sessionID)
}

// Stop останавливает цикл автопилота сессии, если он запущен
func (ap *Autopilot) Stop(sessionID uint) {
	if cancel, loaded := ap.running.LoadAndDelete(sessionID); loaded {
		cancel.(context.CancelFunc)()
		log.Printf("[Autopilot] Автопилот сессии #%d остановлен", sessionID)
	}
}

// StopAll останавливает все циклы (graceful shutdown)
func (ap *Autopilot) StopAll() {
	ap.running.Range(func(key, value interface{}) bool {
		value.(context.CancelFunc)()
		ap.running.Delete(key)
		return true
	})
}

// Restore перезапускает автопилот для активных auto-сессий после рестарта
// процесса. Таймеры восстанавливаются детерминированно из started_at
// активного вопроса, состояние в памяти не требуется.
func (ap *Autopilot) Restore(ctx context.Context) error {
	sessions, err := ap.deps.SessionRepo.ListActive()
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if session.IsAutoAdvance() {
			log.Printf("[Autopilot] Восстановление автопилота для сессии #%d (вопрос %d)",
				session.ID, session.CurrentIndex)
			ap.Start(ctx, session.ID)
		}
	}
	return nil
}

// run — цикл одной сессии: дождаться дедлайна текущего вопроса, перейти
// дальше, повторить до завершения
func (ap *Autopilot) run(ctx context.Context, sessionID uint) {
	defer ap.Stop(sessionID)

	for {
		question, err := ap.currentQuestion(sessionID)
		if err != nil {
			log.Printf("[Autopilot] Сессия #%d: цикл остановлен: %v", sessionID, err)
			return
		}
		if question == nil {
			// Сессия завершена или не активна
			return
		}

		wait := ap.waitFor(question)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		result, err := ap.advancer.AdvanceDeadline(ctx, sessionID)
		if err != nil {
			// Основной путь не прошел — пробуем запасной, затем сдаемся
			log.Printf("[Autopilot] Сессия #%d: auto-advance не удался: %v, запасной путь", sessionID, err)
			result, err = ap.retryAdvance(ctx, sessionID)
			if err != nil {
				log.Printf("[Autopilot] Сессия #%d: запасной advance не удался: %v", sessionID, err)
				return
			}
		}
		if result.Ended {
			return
		}
	}
}

func (ap *Autopilot) retryAdvance(ctx context.Context, sessionID uint) (*AdvanceResult, error) {
	session, err := ap.deps.SessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	return ap.advancer.AdvanceFallback(ctx, sessionID, session.HostUserID)
}

// currentQuestion возвращает активный вопрос сессии или nil, если двигать
// больше нечего
func (ap *Autopilot) currentQuestion(sessionID uint) (*entity.Question, error) {
	session, err := ap.deps.SessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, nil
	}
	return ap.deps.QuestionRepo.GetBySessionAndPosition(sessionID, session.CurrentIndex)
}

// waitFor вычисляет паузу до auto-advance: остаток таймера вопроса плюс
// грейс на поздние ответы
func (ap *Autopilot) waitFor(question *entity.Question) time.Duration {
	remaining := question.RemainingMs(time.Now().UnixMilli())
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining)*time.Millisecond + ap.config.AutoAdvanceGrace
}
