package sessionmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
)

type advancerFixture struct {
	sessionRepo  *MockSessionRepository
	questionRepo *MockQuestionRepository
	playerRepo   *MockPlayerRepository
	answerRepo   *MockAnswerRepository
	cacheRepo    *MockCacheRepository
	feed         *MockFeed
	advancer     *Advancer
}

func newAdvancerFixture() *advancerFixture {
	f := &advancerFixture{
		sessionRepo:  new(MockSessionRepository),
		questionRepo: new(MockQuestionRepository),
		playerRepo:   new(MockPlayerRepository),
		answerRepo:   new(MockAnswerRepository),
		cacheRepo:    new(MockCacheRepository),
		feed:         new(MockFeed),
	}
	config := DefaultConfig()
	// Короткий интервал ретраев, чтобы тесты не тянулись
	config.RetryInterval = 5 * time.Millisecond
	deps := &Dependencies{
		SessionRepo:  f.sessionRepo,
		QuestionRepo: f.questionRepo,
		PlayerRepo:   f.playerRepo,
		AnswerRepo:   f.answerRepo,
		CacheRepo:    f.cacheRepo,
		Feed:         f.feed,
		Config:       config,
	}
	f.advancer = NewAdvancer(config, deps)
	return f
}

func TestAdvanceToNext_MovesPointerAndActivatesNext(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	current := activeQuestion(0, 35*time.Second) // дедлайн прошел
	next := activeQuestion(1, 0)

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(current, nil)
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Return(nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 1).Return(next, nil)
	f.questionRepo.On("ActivateOnce", next.ID).Return(next, nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	result, err := f.advancer.AdvanceToNext(context.Background(), 1, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, result.NewIndex)
	assert.False(t, result.Ended)
	assert.False(t, result.AlreadyAdvanced)

	f.sessionRepo.AssertCalled(t, "AtomicAdvance", uint(1), 0)
	f.questionRepo.AssertCalled(t, "ActivateOnce", next.ID)
}

func TestAdvanceToNext_OnlyHostMayAdvance(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)

	_, err := f.advancer.AdvanceToNext(context.Background(), 1, 42)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	f.sessionRepo.AssertNotCalled(t, "AtomicAdvance", mock.Anything, mock.Anything)
}

func TestAdvanceToNext_EarlyAdvanceRequiresAllAnswers(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	current := activeQuestion(0, 2*time.Second) // таймер еще идет

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(current, nil)
	f.playerRepo.On("CountPlaying", uint(1)).Return(int64(5), nil)
	f.answerRepo.On("CountPlayingAnswers", uint(1), current.ID).Return(int64(3), nil)

	_, err := f.advancer.AdvanceToNext(context.Background(), 1, 100)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	f.sessionRepo.AssertNotCalled(t, "AtomicAdvance", mock.Anything, mock.Anything)
}

func TestAdvanceToNext_EarlyAdvanceAllowedWhenAllAnswered(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	current := activeQuestion(0, 2*time.Second)
	next := activeQuestion(1, 0)

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(current, nil)
	f.playerRepo.On("CountPlaying", uint(1)).Return(int64(5), nil)
	f.answerRepo.On("CountPlayingAnswers", uint(1), current.ID).Return(int64(5), nil)
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Return(nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 1).Return(next, nil)
	f.questionRepo.On("ActivateOnce", next.ID).Return(next, nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	result, err := f.advancer.AdvanceToNext(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewIndex)
}

func TestAdvanceToNext_ConcurrentAdvanceIsNoOp(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	current := activeQuestion(0, 35*time.Second)
	// После конфликта перечитываем: указатель уже на 1
	advanced := activeSession(1)

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil).Once()
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(current, nil)
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Return(apperrors.ErrConflict)
	f.sessionRepo.On("GetByID", uint(1)).Return(advanced, nil).Once()

	result, err := f.advancer.AdvanceToNext(context.Background(), 1, 100)
	require.NoError(t, err)

	// Второй вызов не перескакивает вопрос
	assert.True(t, result.AlreadyAdvanced)
	assert.Equal(t, 1, result.NewIndex)

	f.questionRepo.AssertNotCalled(t, "ActivateOnce", mock.Anything)
}

func TestAdvanceToNext_LastQuestionEndsSession(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(2) // последний вопрос из трех
	current := activeQuestion(2, 35*time.Second)

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 2).Return(current, nil)
	f.sessionRepo.On("AtomicEnd", uint(1)).Return(nil)
	f.playerRepo.On("FinalizeRanks", uint(1)).Return(nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	result, err := f.advancer.AdvanceToNext(context.Background(), 1, 100)
	require.NoError(t, err)

	assert.True(t, result.Ended)
	f.playerRepo.AssertCalled(t, "FinalizeRanks", uint(1))

	// Координатор получает сигнал о завершении
	select {
	case endedID := <-f.advancer.SessionEnded():
		assert.Equal(t, uint(1), endedID)
	default:
		t.Fatal("expected session ended signal")
	}
}

func TestAdvanceToNext_EndedSessionRejected(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(2)
	session.Status = entity.SessionStatusEnded
	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)

	_, err := f.advancer.AdvanceToNext(context.Background(), 1, 100)
	assert.ErrorIs(t, err, apperrors.ErrStaleState)
}

func TestAdvanceFallback_RetriesTransientFailures(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	current := activeQuestion(0, 35*time.Second)
	next := activeQuestion(1, 0)

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(current, nil)
	// Две транзиентные ошибки, затем успех
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Return(assert.AnError).Twice()
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Return(nil).Once()
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 1).Return(next, nil)
	f.questionRepo.On("ActivateOnce", next.ID).Return(next, nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	result, err := f.advancer.AdvanceFallback(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewIndex)

	f.sessionRepo.AssertNumberOfCalls(t, "AtomicAdvance", 3)
}

func TestAdvanceFallback_BoundedRetries(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	current := activeQuestion(0, 35*time.Second)

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(current, nil)
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Return(assert.AnError)

	_, err := f.advancer.AdvanceFallback(context.Background(), 1, 100)
	require.Error(t, err)

	// Ровно MaxRetries попыток, не бесконечный цикл
	f.sessionRepo.AssertNumberOfCalls(t, "AtomicAdvance", DefaultConfig().MaxRetries)
}

func TestAdvanceFallback_NonRetryableErrorsPropagate(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)

	// Не ведущий: ошибка не ретраится
	_, err := f.advancer.AdvanceFallback(context.Background(), 1, 42)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	f.sessionRepo.AssertNotCalled(t, "AtomicAdvance", mock.Anything, mock.Anything)
}

func TestEndSession_WaitingSessionCanBeDissolved(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(entity.NoCurrentQuestion)
	session.Status = entity.SessionStatusWaiting

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.sessionRepo.On("Update", mock.AnythingOfType("*entity.Session")).Return(nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	result, err := f.advancer.EndSession(context.Background(), 1, 100)
	require.NoError(t, err)

	assert.True(t, result.Ended)
	assert.Equal(t, entity.NoCurrentQuestion, result.NewIndex)
	assert.Equal(t, entity.SessionStatusEnded, session.Status)
}

func TestEndSession_IdempotentWhenAlreadyEnded(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(1)

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.sessionRepo.On("AtomicEnd", uint(1)).Return(apperrors.ErrConflict)

	result, err := f.advancer.EndSession(context.Background(), 1, 100)
	require.NoError(t, err)

	assert.True(t, result.Ended)
	assert.True(t, result.AlreadyAdvanced)
	f.playerRepo.AssertNotCalled(t, "FinalizeRanks", mock.Anything)
}

func TestAdvanceFallback_RespectsEarlyAdvanceGate(t *testing.T) {
	f := newAdvancerFixture()

	session := activeSession(0)
	current := activeQuestion(0, 2*time.Second) // таймер еще идет

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(current, nil)
	f.playerRepo.On("CountPlaying", uint(1)).Return(int64(5), nil)
	f.answerRepo.On("CountPlayingAnswers", uint(1), current.ID).Return(int64(3), nil)

	_, err := f.advancer.AdvanceFallback(context.Background(), 1, 100)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Запасной путь не обходит запрет раннего advance и не ретраит его
	f.sessionRepo.AssertNotCalled(t, "AtomicAdvance", mock.Anything, mock.Anything)
	f.sessionRepo.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestAdvanceFallback_CompletesHalfFinishedTransition(t *testing.T) {
	f := newAdvancerFixture()

	// Указатель на вопросе 1, но вопрос не активирован: предыдущий advance
	// упал между CAS и активацией
	session := activeSession(1)
	pending := activeQuestion(1, 0)
	pending.StartedAt = nil
	activated := activeQuestion(1, 0)

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 1).Return(pending, nil)
	f.questionRepo.On("ActivateOnce", pending.ID).Return(activated, nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	result, err := f.advancer.AdvanceFallback(context.Background(), 1, 100)
	require.NoError(t, err)

	// Ретрай достраивает прерванный переход, а не перескакивает вопрос
	assert.Equal(t, 1, result.NewIndex)
	f.questionRepo.AssertCalled(t, "ActivateOnce", pending.ID)
	f.sessionRepo.AssertNotCalled(t, "AtomicAdvance", mock.Anything, mock.Anything)
}
