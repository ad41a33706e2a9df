package entity

import (
	"time"
)

// Константы статусов сессии
const (
	SessionStatusWaiting = "waiting"
	SessionStatusActive  = "active"
	SessionStatusEnded   = "ended"
)

// Константы режимов перехода между вопросами
const (
	AdvanceModeManual = "manual"
	AdvanceModeAuto   = "auto"
)

// NoCurrentQuestion — значение current_index, пока сессия в статусе waiting
const NoCurrentQuestion = -1

// Session представляет одну живую квиз-сессию
type Session struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Code          string     `gorm:"size:12;not null;uniqueIndex" json:"code"`
	Title         string     `gorm:"size:100;not null" json:"title"`
	HostUserID    uint       `gorm:"not null;index" json:"host_user_id"`
	HostEmail     string     `gorm:"size:255;not null;default:''" json:"-"`
	PINHash       string     `gorm:"size:100;not null;default:''" json:"-"`
	AdvanceMode   string     `gorm:"size:10;not null;default:'manual'" json:"advance_mode"`
	Status        string     `gorm:"size:10;not null;default:'waiting';index" json:"status"`
	CurrentIndex  int        `gorm:"not null;default:-1" json:"current_index"`
	QuestionCount int        `gorm:"not null;default:0" json:"question_count"`
	Questions     []Question `gorm:"foreignKey:SessionID" json:"questions,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Session) TableName() string {
	return "sessions"
}

// IsWaiting проверяет, что сессия еще принимает игроков и не начата
func (s *Session) IsWaiting() bool {
	return s.Status == SessionStatusWaiting
}

// IsActive проверяет, идет ли сессия
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// IsEnded проверяет, завершена ли сессия. Статус ended — терминальный.
func (s *Session) IsEnded() bool {
	return s.Status == SessionStatusEnded
}

// IsAutoAdvance проверяет, переходит ли сессия к следующему вопросу сама
func (s *Session) IsAutoAdvance() bool {
	return s.AdvanceMode == AdvanceModeAuto
}

// IsHost проверяет, является ли пользователь ведущим сессии
func (s *Session) IsHost(userID uint) bool {
	return s.HostUserID == userID
}

// HasPIN проверяет, защищена ли сессия PIN-кодом
func (s *Session) HasPIN() bool {
	return s.PINHash != ""
}

// OnLastQuestion проверяет, указывает ли current_index на последний вопрос
func (s *Session) OnLastQuestion() bool {
	return s.CurrentIndex >= 0 && s.CurrentIndex == s.QuestionCount-1
}
