package dto

import (
	"time"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

// SessionResponse представляет сессию в формате для ответа клиенту
type SessionResponse struct {
	ID            uint       `json:"id"`
	Code          string     `json:"code"`
	Title         string     `json:"title"`
	AdvanceMode   string     `json:"advance_mode"`
	Status        string     `json:"status"`
	CurrentIndex  int        `json:"current_index"`
	QuestionCount int        `json:"question_count"`
	HasPIN        bool       `json:"has_pin"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewSessionResponse создает DTO для сессии
func NewSessionResponse(session *entity.Session) *SessionResponse {
	return &SessionResponse{
		ID:            session.ID,
		Code:          session.Code,
		Title:         session.Title,
		AdvanceMode:   session.AdvanceMode,
		Status:        session.Status,
		CurrentIndex:  session.CurrentIndex,
		QuestionCount: session.QuestionCount,
		HasPIN:        session.HasPIN(),
		StartedAt:     session.StartedAt,
		EndedAt:       session.EndedAt,
		CreatedAt:     session.CreatedAt,
	}
}

// QuestionResponse представляет вопрос в формате для ответа клиенту.
// Правильный вариант в DTO не входит.
type QuestionResponse struct {
	ID           uint     `json:"id"`
	SessionID    uint     `json:"session_id"`
	Position     int      `json:"position"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	TimeLimitSec int      `json:"time_limit_sec"`
	PointValue   int      `json:"point_value"`
}

// NewQuestionResponse создает DTO для вопроса
func NewQuestionResponse(question *entity.Question) *QuestionResponse {
	return &QuestionResponse{
		ID:           question.ID,
		SessionID:    question.SessionID,
		Position:     question.Position,
		Text:         question.Text,
		Options:      question.Options,
		TimeLimitSec: question.TimeLimitSec,
		PointValue:   question.PointValue,
	}
}

// NewQuestionListResponse создает список DTO вопросов
func NewQuestionListResponse(questions []entity.Question) []*QuestionResponse {
	out := make([]*QuestionResponse, 0, len(questions))
	for i := range questions {
		out = append(out, NewQuestionResponse(&questions[i]))
	}
	return out
}

// PlayerResponse представляет участника в формате для ответа клиенту
type PlayerResponse struct {
	ID             uint       `json:"id"`
	UserID         uint       `json:"user_id"`
	DisplayName    string     `json:"display_name"`
	Avatar         string     `json:"avatar,omitempty"`
	Score          int        `json:"score"`
	CorrectCount   int        `json:"correct_count"`
	IsPlaying      bool       `json:"is_playing"`
	Rank           int        `json:"rank"`
	LastAnsweredAt *time.Time `json:"last_answered_at,omitempty"`
}

// NewPlayerResponse создает DTO для участника
func NewPlayerResponse(player *entity.Player) *PlayerResponse {
	return &PlayerResponse{
		ID:             player.ID,
		UserID:         player.UserID,
		DisplayName:    player.DisplayName,
		Avatar:         player.Avatar,
		Score:          player.Score,
		CorrectCount:   player.CorrectCount,
		IsPlaying:      player.IsPlaying,
		Rank:           player.Rank,
		LastAnsweredAt: player.LastAnsweredAt,
	}
}

// NewLeaderboardResponse создает список DTO участников
func NewLeaderboardResponse(players []entity.Player) []*PlayerResponse {
	out := make([]*PlayerResponse, 0, len(players))
	for i := range players {
		out = append(out, NewPlayerResponse(&players[i]))
	}
	return out
}
