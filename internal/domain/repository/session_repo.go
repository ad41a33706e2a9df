package repository

import (
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

// SessionRepository определяет методы для работы с сессиями
type SessionRepository interface {
	Create(session *entity.Session) error
	GetByID(id uint) (*entity.Session, error)
	GetByCode(code string) (*entity.Session, error)
	GetWithQuestions(id uint) (*entity.Session, error)
	// ListActive возвращает все сессии в статусе active (восстановление
	// автопилота после рестарта сервера)
	ListActive() ([]entity.Session, error)
	// AtomicStart атомарно переводит waiting → active и ставит current_index=0.
	// RowsAffected == 0 означает, что сессия не в статусе waiting.
	AtomicStart(sessionID uint) error
	// AtomicAdvance атомарно сдвигает current_index с fromIndex на fromIndex+1
	// (CAS по current_index). RowsAffected == 0 означает, что кто-то уже
	// сдвинул указатель — повторный вызов не перескакивает вопрос.
	AtomicAdvance(sessionID uint, fromIndex int) error
	// AtomicEnd атомарно переводит active → ended. RowsAffected == 0 означает,
	// что сессия уже завершена или не была активна.
	AtomicEnd(sessionID uint) error
	IncrementQuestionCount(sessionID uint, delta int) error
	Update(session *entity.Session) error
}
