package entity

import (
	"time"
)

// Player представляет участника сессии.
// Счет монотонно неубывающий в рамках сессии: единственный путь его
// изменения — атомарный инкремент при сохранении ответа.
type Player struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SessionID      uint       `gorm:"not null;index;uniqueIndex:idx_session_user" json:"session_id"`
	UserID         uint       `gorm:"not null;uniqueIndex:idx_session_user" json:"user_id"`
	DisplayName    string     `gorm:"size:50;not null" json:"display_name"`
	Avatar         string     `gorm:"size:255;not null;default:''" json:"avatar"`
	Score          int        `gorm:"not null;default:0" json:"score"`
	CorrectCount   int        `gorm:"not null;default:0" json:"correct_count"`
	IsPlaying      bool       `gorm:"not null;default:true" json:"is_playing"` // Ведущий может наблюдать, не играя
	Rank           int        `gorm:"not null;default:0" json:"rank"`
	LastAnsweredAt *time.Time `json:"last_answered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Player) TableName() string {
	return "players"
}
