package service

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

// Мок-объекты для интерфейсов репозиториев

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(session *entity.Session) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(id uint) (*entity.Session, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Session), args.Error(1)
}

func (m *MockSessionRepository) GetByCode(code string) (*entity.Session, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Session), args.Error(1)
}

func (m *MockSessionRepository) GetWithQuestions(id uint) (*entity.Session, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Session), args.Error(1)
}

func (m *MockSessionRepository) ListActive() ([]entity.Session, error) {
	args := m.Called()
	return args.Get(0).([]entity.Session), args.Error(1)
}

func (m *MockSessionRepository) AtomicStart(sessionID uint) error {
	args := m.Called(sessionID)
	return args.Error(0)
}

func (m *MockSessionRepository) AtomicAdvance(sessionID uint, fromIndex int) error {
	args := m.Called(sessionID, fromIndex)
	return args.Error(0)
}

func (m *MockSessionRepository) AtomicEnd(sessionID uint) error {
	args := m.Called(sessionID)
	return args.Error(0)
}

func (m *MockSessionRepository) IncrementQuestionCount(sessionID uint, delta int) error {
	args := m.Called(sessionID, delta)
	return args.Error(0)
}

func (m *MockSessionRepository) Update(session *entity.Session) error {
	args := m.Called(session)
	return args.Error(0)
}

type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) CreateBatch(questions []entity.Question) error {
	args := m.Called(questions)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(id uint) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetBySessionAndPosition(sessionID uint, position int) (*entity.Question, error) {
	args := m.Called(sessionID, position)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetBySession(sessionID uint) ([]entity.Question, error) {
	args := m.Called(sessionID)
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) ActivateOnce(questionID uint) (*entity.Question, error) {
	args := m.Called(questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

type MockPlayerRepository struct {
	mock.Mock
}

func (m *MockPlayerRepository) Create(player *entity.Player) error {
	args := m.Called(player)
	return args.Error(0)
}

func (m *MockPlayerRepository) GetByID(id uint) (*entity.Player, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Player), args.Error(1)
}

func (m *MockPlayerRepository) GetBySessionAndUser(sessionID uint, userID uint) (*entity.Player, error) {
	args := m.Called(sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Player), args.Error(1)
}

func (m *MockPlayerRepository) GetBySession(sessionID uint) ([]entity.Player, error) {
	args := m.Called(sessionID)
	return args.Get(0).([]entity.Player), args.Error(1)
}

func (m *MockPlayerRepository) CountPlaying(sessionID uint) (int64, error) {
	args := m.Called(sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlayerRepository) GetLeaderboard(sessionID uint) ([]entity.Player, error) {
	args := m.Called(sessionID)
	return args.Get(0).([]entity.Player), args.Error(1)
}

func (m *MockPlayerRepository) FinalizeRanks(sessionID uint) error {
	args := m.Called(sessionID)
	return args.Error(0)
}

type MockAnswerRepository struct {
	mock.Mock
}

func (m *MockAnswerRepository) SaveWithScore(answer *entity.Answer) error {
	args := m.Called(answer)
	return args.Error(0)
}

func (m *MockAnswerRepository) GetByPlayerAndQuestion(playerID uint, questionID uint) (*entity.Answer, error) {
	args := m.Called(playerID, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Answer), args.Error(1)
}

func (m *MockAnswerRepository) GetBySession(sessionID uint) ([]entity.Answer, error) {
	args := m.Called(sessionID)
	return args.Get(0).([]entity.Answer), args.Error(1)
}

func (m *MockAnswerRepository) GetByQuestion(questionID uint) ([]entity.Answer, error) {
	args := m.Called(questionID)
	return args.Get(0).([]entity.Answer), args.Error(1)
}

func (m *MockAnswerRepository) CountByQuestion(questionID uint) (int64, error) {
	args := m.Called(questionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAnswerRepository) CountPlayingAnswers(sessionID uint, questionID uint) (int64, error) {
	args := m.Called(sessionID, questionID)
	return args.Get(0).(int64), args.Error(1)
}

type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepository) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepository) Increment(key string) (int64, error) {
	args := m.Called(key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheRepository) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepository) SAdd(key string, members ...interface{}) error {
	args := m.Called(key, members)
	return args.Error(0)
}

func (m *MockCacheRepository) SMembers(key string) ([]string, error) {
	args := m.Called(key)
	return args.Get(0).([]string), args.Error(1)
}

// MockFeed реализует интерфейс рассылки событий
type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) BroadcastToSession(sessionID uint, event interface{}) error {
	args := m.Called(sessionID, event)
	return args.Error(0)
}
