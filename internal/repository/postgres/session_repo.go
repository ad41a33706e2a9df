package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
)

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create создает новую сессию
func (r *SessionRepo) Create(session *entity.Session) error {
	return r.db.Create(session).Error
}

// GetByID возвращает сессию по ID
func (r *SessionRepo) GetByID(id uint) (*entity.Session, error) {
	var session entity.Session
	err := r.db.First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetByCode возвращает сессию по короткому коду подключения
func (r *SessionRepo) GetByCode(code string) (*entity.Session, error) {
	var session entity.Session
	err := r.db.Where("code = ?", code).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetWithQuestions возвращает сессию вместе с вопросами (в порядке position)
func (r *SessionRepo) GetWithQuestions(id uint) (*entity.Session, error) {
	var session entity.Session
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// ListActive возвращает все активные сессии
func (r *SessionRepo) ListActive() ([]entity.Session, error) {
	var sessions []entity.Session
	err := r.db.Where("status = ?", entity.SessionStatusActive).
		Order("id").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// AtomicStart атомарно переводит waiting → active и активирует первый вопрос.
// - RowsAffected == 0 → сессия не в статусе waiting (уже начата или завершена)
// - Другая DB ошибка → возвращается как есть
func (r *SessionRepo) AtomicStart(sessionID uint) error {
	result := r.db.Model(&entity.Session{}).
		Where("id = ? AND status = ?", sessionID, entity.SessionStatusWaiting).
		Updates(map[string]interface{}{
			"status":        entity.SessionStatusActive,
			"current_index": 0,
			"started_at":    time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("start session #%d failed: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: session #%d is not waiting", apperrors.ErrConflict, sessionID)
	}
	return nil
}

// AtomicAdvance атомарно сдвигает current_index с fromIndex на fromIndex+1.
// CAS по (id, status, current_index) гарантирует монотонность указателя:
// два одновременных advance не перескочат вопрос.
// - RowsAffected == 0 → указатель уже сдвинут (или сессия не активна)
func (r *SessionRepo) AtomicAdvance(sessionID uint, fromIndex int) error {
	result := r.db.Model(&entity.Session{}).
		Where("id = ? AND status = ? AND current_index = ?",
			sessionID, entity.SessionStatusActive, fromIndex).
		Update("current_index", fromIndex+1)

	if result.Error != nil {
		return fmt.Errorf("advance session #%d failed: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: session #%d already advanced past index %d",
			apperrors.ErrConflict, sessionID, fromIndex)
	}
	return nil
}

// AtomicEnd атомарно переводит active → ended.
// - RowsAffected == 0 → сессия уже завершена или не была начата
func (r *SessionRepo) AtomicEnd(sessionID uint) error {
	result := r.db.Model(&entity.Session{}).
		Where("id = ? AND status = ?", sessionID, entity.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":   entity.SessionStatusEnded,
			"ended_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("end session #%d failed: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: session #%d is not active", apperrors.ErrConflict, sessionID)
	}
	return nil
}

// IncrementQuestionCount атомарно увеличивает question_count на delta через gorm.Expr
func (r *SessionRepo) IncrementQuestionCount(sessionID uint, delta int) error {
	return r.db.Model(&entity.Session{}).
		Where("id = ?", sessionID).
		Update("question_count", gorm.Expr("question_count + ?", delta)).
		Error
}

// Update обновляет информацию о сессии
func (r *SessionRepo) Update(session *entity.Session) error {
	return r.db.Save(session).Error
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
