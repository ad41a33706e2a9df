package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// CreateBatch создает несколько вопросов одним запросом
func (r *QuestionRepo) CreateBatch(questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.Create(&questions).Error
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// GetBySessionAndPosition возвращает вопрос сессии по его позиции
func (r *QuestionRepo) GetBySessionAndPosition(sessionID uint, position int) (*entity.Question, error) {
	var question entity.Question
	err := r.db.Where("session_id = ? AND position = ?", sessionID, position).
		First(&question).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// GetBySession возвращает все вопросы сессии в порядке position
func (r *QuestionRepo) GetBySession(sessionID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("session_id = ?", sessionID).
		Order("position ASC").
		Find(&questions).Error
	return questions, err
}

// ActivateOnce устанавливает started_at вопроса ровно один раз.
// UPDATE ... WHERE started_at IS NULL: при гонке двух активаций время
// старта проставит только одна, вторая прочитает уже записанное значение.
// Время старта — якорь отсчета для всех клиентов (remaining = limit - (now - started_at)).
func (r *QuestionRepo) ActivateOnce(questionID uint) (*entity.Question, error) {
	now := time.Now()
	result := r.db.Model(&entity.Question{}).
		Where("id = ? AND started_at IS NULL", questionID).
		Update("started_at", now)
	if result.Error != nil {
		return nil, fmt.Errorf("activate question #%d failed: %w", questionID, result.Error)
	}

	// Перечитываем вопрос: либо наше время, либо ранее записанное
	question, err := r.GetByID(questionID)
	if err != nil {
		return nil, err
	}
	if question.StartedAt == nil {
		return nil, fmt.Errorf("question #%d has no start time after activation", questionID)
	}
	return question, nil
}
