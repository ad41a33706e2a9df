package repository

import (
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с вопросами
type QuestionRepository interface {
	CreateBatch(questions []entity.Question) error
	GetByID(id uint) (*entity.Question, error)
	GetBySessionAndPosition(sessionID uint, position int) (*entity.Question, error)
	GetBySession(sessionID uint) ([]entity.Question, error)
	// ActivateOnce устанавливает started_at ровно один раз
	// (UPDATE ... WHERE started_at IS NULL). Повторная активация — no-op,
	// возвращает фактическое время старта из базы.
	ActivateOnce(questionID uint) (*entity.Question, error)
}
