package repository

import (
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

// PlayerRepository определяет методы для работы с участниками сессии
type PlayerRepository interface {
	Create(player *entity.Player) error
	GetByID(id uint) (*entity.Player, error)
	GetBySessionAndUser(sessionID uint, userID uint) (*entity.Player, error)
	GetBySession(sessionID uint) ([]entity.Player, error)
	CountPlaying(sessionID uint) (int64, error)
	// GetLeaderboard возвращает игроков сессии в детерминированном порядке:
	// score DESC, затем last_answered_at ASC (кто раньше добрал финальный
	// счет — выше), затем id ASC.
	GetLeaderboard(sessionID uint) ([]entity.Player, error)
	// FinalizeRanks вычисляет и сохраняет ранги всех игроков сессии одним
	// SQL-запросом. Вызывается при завершении сессии.
	FinalizeRanks(sessionID uint) error
}
