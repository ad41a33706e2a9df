package sessionmanager

import (
	"time"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/repository"
)

// Константы по умолчанию
const (
	// DefaultAnswerGuardTTL — время жизни Redis-ключа "ответ дан"
	DefaultAnswerGuardTTL = time.Hour

	// DefaultParticipantSetTTL — время жизни множества участников сессии
	DefaultParticipantSetTTL = 24 * time.Hour
)

// Config содержит настройки для всех компонентов SessionManager
type Config struct {
	// Максимальное количество попыток fallback-advance
	MaxRetries int

	// Интервал между повторными попытками advance
	RetryInterval time.Duration

	// Допуск автопилота после дедлайна вопроса, прежде чем
	// сессия сама перейдет к следующему вопросу
	AutoAdvanceGrace time.Duration

	// TTL ключа-защиты от повторного ответа
	AnswerGuardTTL time.Duration

	// Ограничение на количество вопросов в сессии
	MaxQuestionsPerSession int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:             3,
		RetryInterval:          500 * time.Millisecond,
		AutoAdvanceGrace:       2 * time.Second,
		AnswerGuardTTL:         DefaultAnswerGuardTTL,
		MaxQuestionsPerSession: 50,
	}
}

// Dependencies содержит зависимости для компонентов SessionManager
type Dependencies struct {
	SessionRepo  repository.SessionRepository
	QuestionRepo repository.QuestionRepository
	PlayerRepo   repository.PlayerRepository
	AnswerRepo   repository.AnswerRepository
	CacheRepo    repository.CacheRepository
	Feed         Feed
	Config       *Config
}

// Feed определяет интерфейс рассылки событий изменения состояния
// подключенным клиентам сессии. События — подсказки "перечитай снапшот":
// доставка at-least-once, порядок не гарантируется, клиент всегда
// пересчитывает отображение от авторитетного снапшота.
type Feed interface {
	BroadcastToSession(sessionID uint, event interface{}) error
}
