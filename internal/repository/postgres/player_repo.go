package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
)

// PlayerRepo реализует repository.PlayerRepository
type PlayerRepo struct {
	db *gorm.DB
}

// NewPlayerRepo создает новый репозиторий участников
func NewPlayerRepo(db *gorm.DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Create создает участника сессии. Повторное подключение того же
// пользователя определяется по unique violation (session_id, user_id).
func (r *PlayerRepo) Create(player *entity.Player) error {
	err := r.db.Create(player).Error
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: user #%d already joined session #%d",
			apperrors.ErrConflict, player.UserID, player.SessionID)
	}
	return err
}

// GetByID возвращает участника по ID
func (r *PlayerRepo) GetByID(id uint) (*entity.Player, error) {
	var player entity.Player
	err := r.db.First(&player, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &player, nil
}

// GetBySessionAndUser возвращает участника сессии по ID пользователя
func (r *PlayerRepo) GetBySessionAndUser(sessionID uint, userID uint) (*entity.Player, error) {
	var player entity.Player
	err := r.db.Where("session_id = ? AND user_id = ?", sessionID, userID).
		First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &player, nil
}

// GetBySession возвращает всех участников сессии в порядке подключения
func (r *PlayerRepo) GetBySession(sessionID uint) ([]entity.Player, error) {
	var players []entity.Player
	err := r.db.Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&players).Error
	return players, err
}

// CountPlaying возвращает количество играющих (не наблюдающих) участников
func (r *PlayerRepo) CountPlaying(sessionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Player{}).
		Where("session_id = ? AND is_playing = ?", sessionID, true).
		Count(&count).Error
	return count, err
}

// GetLeaderboard возвращает игроков сессии в порядке лидерборда.
// Порядок детерминирован: score DESC, last_answered_at ASC NULLS LAST
// (при равном счете выше тот, кто добрал его раньше), затем id ASC.
func (r *PlayerRepo) GetLeaderboard(sessionID uint) ([]entity.Player, error) {
	var players []entity.Player
	err := r.db.Where("session_id = ? AND is_playing = ?", sessionID, true).
		Order("score DESC, last_answered_at ASC NULLS LAST, id ASC").
		Find(&players).Error
	return players, err
}

// FinalizeRanks вычисляет и сохраняет ранги всех игроков сессии, используя SQL.
// Вызывается один раз при завершении сессии; после этого счет финален.
func (r *PlayerRepo) FinalizeRanks(sessionID uint) error {
	sql := `
		UPDATE players
		SET rank = ranked.new_rank
		FROM (
			SELECT id,
			       ROW_NUMBER() OVER (
			           ORDER BY score DESC, last_answered_at ASC NULLS LAST, id ASC
			       ) AS new_rank
			FROM players
			WHERE session_id = ? AND is_playing = TRUE
		) AS ranked
		WHERE players.id = ranked.id`

	return r.db.Exec(sql, sessionID).Error
}
