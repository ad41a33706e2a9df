package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/repository"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
)

// AnswerRepo реализует repository.AnswerRepository
type AnswerRepo struct {
	db *gorm.DB
}

// NewAnswerRepo создает новый репозиторий ответов
func NewAnswerRepo(db *gorm.DB) *AnswerRepo {
	return &AnswerRepo{db: db}
}

// SaveWithScore в одной транзакции сохраняет ответ и атомарно инкрементирует
// счет игрока. Unique index (player_id, question_id) отсекает дубликаты на
// уровне базы: повторная запись откатывает транзакцию целиком, счет не
// инкрементируется второй раз.
func (r *AnswerRepo) SaveWithScore(answer *entity.Answer) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicateAnswer
			}
			return err
		}

		updates := map[string]interface{}{
			"last_answered_at": time.Now(),
		}
		if answer.Points > 0 {
			updates["score"] = gorm.Expr("score + ?", answer.Points)
		}
		if answer.IsCorrect {
			updates["correct_count"] = gorm.Expr("correct_count + 1")
		}

		return tx.Model(&entity.Player{}).
			Where("id = ?", answer.PlayerID).
			Updates(updates).Error
	})
}

// GetByPlayerAndQuestion возвращает ответ игрока на вопрос
func (r *AnswerRepo) GetByPlayerAndQuestion(playerID uint, questionID uint) (*entity.Answer, error) {
	var answer entity.Answer
	err := r.db.Where("player_id = ? AND question_id = ?", playerID, questionID).
		First(&answer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &answer, nil
}

// GetBySession возвращает все ответы сессии в порядке создания
func (r *AnswerRepo) GetBySession(sessionID uint) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&answers).Error
	return answers, err
}

// GetByQuestion возвращает все ответы на вопрос
func (r *AnswerRepo) GetByQuestion(questionID uint) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.Where("question_id = ?", questionID).
		Order("created_at ASC").
		Find(&answers).Error
	return answers, err
}

// CountByQuestion возвращает количество ответов на вопрос
func (r *AnswerRepo) CountByQuestion(questionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Answer{}).
		Where("question_id = ?", questionID).
		Count(&count).Error
	return count, err
}

// CountPlayingAnswers считает ответы играющих участников на вопрос.
// Наблюдатели (is_playing = false) не учитываются при проверке
// "все ответили" для раннего advance.
func (r *AnswerRepo) CountPlayingAnswers(sessionID uint, questionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Answer{}).
		Joins("JOIN players ON players.id = answers.player_id").
		Where("answers.session_id = ? AND answers.question_id = ? AND players.is_playing = ?",
			sessionID, questionID, true).
		Count(&count).Error
	return count, err
}
