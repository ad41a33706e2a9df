package entity

import (
	"time"
)

// Answer представляет ответ игрока на один вопрос.
// Уникальный индекс (player_id, question_id) — ключевой инвариант:
// не более одного ответа на пару (игрок, вопрос), повторная отправка
// никогда не засчитывается дважды.
type Answer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      uint      `gorm:"not null;index" json:"session_id"`
	PlayerID       uint      `gorm:"not null;index;uniqueIndex:idx_player_question" json:"player_id"`
	QuestionID     uint      `gorm:"not null;index;uniqueIndex:idx_player_question" json:"question_id"`
	SelectedOption int       `gorm:"not null;default:-1" json:"selected_option"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	ResponseTimeMs int64     `gorm:"not null" json:"response_time_ms"`
	Points         int       `gorm:"not null;default:0" json:"points"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Answer) TableName() string {
	return "answers"
}

// IsTimeout проверяет, является ли ответ автоотправкой по таймауту
func (a *Answer) IsTimeout() bool {
	return a.SelectedOption == TimeoutOption
}
