package repository

import (
	"errors"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

// ErrDuplicateAnswer означает, что ответ на пару (игрок, вопрос) уже записан.
// Определяется по unique violation (23505) от базы.
var ErrDuplicateAnswer = errors.New("answer already recorded for this question")

// AnswerRepository определяет методы для работы с ответами
type AnswerRepository interface {
	// SaveWithScore в одной транзакции сохраняет ответ и атомарно
	// инкрементирует счет игрока. Дубликат по (player_id, question_id)
	// возвращает ErrDuplicateAnswer, счет при этом не меняется.
	SaveWithScore(answer *entity.Answer) error
	GetByPlayerAndQuestion(playerID uint, questionID uint) (*entity.Answer, error)
	GetBySession(sessionID uint) ([]entity.Answer, error)
	GetByQuestion(questionID uint) ([]entity.Answer, error)
	CountByQuestion(questionID uint) (int64, error)
	// CountPlayingAnswers считает ответы играющих (не наблюдающих) участников
	// на вопрос — для раннего advance в manual режиме.
	CountPlayingAnswers(sessionID uint, questionID uint) (int64, error)
}
