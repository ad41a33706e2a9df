package sessionmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/domain/entity"
)

type autopilotFixture struct {
	sessionRepo  *MockSessionRepository
	questionRepo *MockQuestionRepository
	playerRepo   *MockPlayerRepository
	answerRepo   *MockAnswerRepository
	cacheRepo    *MockCacheRepository
	feed         *MockFeed
	advancer     *Advancer
	autopilot    *Autopilot
}

func newAutopilotFixture() *autopilotFixture {
	f := &autopilotFixture{
		sessionRepo:  new(MockSessionRepository),
		questionRepo: new(MockQuestionRepository),
		playerRepo:   new(MockPlayerRepository),
		answerRepo:   new(MockAnswerRepository),
		cacheRepo:    new(MockCacheRepository),
		feed:         new(MockFeed),
	}
	config := DefaultConfig()
	// Короткие таймеры, чтобы тесты не тянулись
	config.AutoAdvanceGrace = 10 * time.Millisecond
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
	f.autopilot = NewAutopilot(config, deps, f.advancer)
	return f
}

func autoSession(currentIndex int) *entity.Session {
	session := activeSession(currentIndex)
	session.AdvanceMode = entity.AdvanceModeAuto
	return session
}

// Дедлайн вопроса прошел: автопилот сам двигает указатель, дожидаясь
// только грейс-периода. CAS гарантирует ровно один сдвиг на дедлайн.
func TestAutopilot_AdvancesWhenDeadlinePasses(t *testing.T) {
	f := newAutopilotFixture()

	before := autoSession(0)
	after := autoSession(1)
	expired := activeQuestion(0, 35*time.Second)
	next := activeQuestion(1, 0)

	advanced := make(chan struct{})

	// Три чтения до сдвига (цикл, AdvanceDeadline, advance), затем
	// сессия уже на следующем вопросе
	f.sessionRepo.On("GetByID", uint(1)).Return(before, nil).Times(3)
	f.sessionRepo.On("GetByID", uint(1)).Return(after, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(expired, nil)
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Run(func(mock.Arguments) {
		close(advanced)
	}).Return(nil).Once()
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 1).Return(next, nil)
	f.questionRepo.On("ActivateOnce", next.ID).Return(next, nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	f.autopilot.Start(context.Background(), 1)
	defer f.autopilot.StopAll()

	select {
	case <-advanced:
	case <-time.After(2 * time.Second):
		t.Fatal("autopilot did not advance after the question deadline")
	}
}

// Последний вопрос: автопилот завершает сессию и выходит из цикла
func TestAutopilot_EndsSessionAfterLastQuestion(t *testing.T) {
	f := newAutopilotFixture()

	session := autoSession(2) // последний вопрос из трех
	expired := activeQuestion(2, 35*time.Second)

	ended := make(chan struct{})

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 2).Return(expired, nil)
	f.sessionRepo.On("AtomicEnd", uint(1)).Run(func(mock.Arguments) {
		close(ended)
	}).Return(nil).Once()
	f.playerRepo.On("FinalizeRanks", uint(1)).Return(nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	f.autopilot.Start(context.Background(), 1)
	defer f.autopilot.StopAll()

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("autopilot did not end the session after the last question")
	}

	// Координатор получает сигнал о завершении
	select {
	case endedID := <-f.advancer.SessionEnded():
		assert.Equal(t, uint(1), endedID)
	case <-time.After(time.Second):
		t.Fatal("expected session ended signal")
	}
}

// Сбой основного advance не роняет автопилот: срабатывает запасной путь
func TestAutopilot_FallsBackWhenPrimaryAdvanceFails(t *testing.T) {
	f := newAutopilotFixture()

	before := autoSession(0)
	after := autoSession(1)
	expired := activeQuestion(0, 35*time.Second)
	next := activeQuestion(1, 0)

	recovered := make(chan struct{})

	// Основной путь: цикл, AdvanceDeadline, advance. Запасной путь:
	// retryAdvance, advance. Затем сессия на следующем вопросе.
	f.sessionRepo.On("GetByID", uint(1)).Return(before, nil).Times(5)
	f.sessionRepo.On("GetByID", uint(1)).Return(after, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(expired, nil)
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Return(assert.AnError).Once()
	f.sessionRepo.On("AtomicAdvance", uint(1), 0).Run(func(mock.Arguments) {
		close(recovered)
	}).Return(nil).Once()
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 1).Return(next, nil)
	f.questionRepo.On("ActivateOnce", next.ID).Return(next, nil)
	f.feed.On("BroadcastToSession", uint(1), mock.Anything).Return(nil)

	f.autopilot.Start(context.Background(), 1)
	defer f.autopilot.StopAll()

	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("autopilot did not recover via the fallback path")
	}
}

// Повторный Start той же сессии не порождает второй цикл
func TestAutopilot_DuplicateStartIsNoOp(t *testing.T) {
	f := newAutopilotFixture()

	session := autoSession(0)
	running := activeQuestion(0, 0) // таймер только пошел, цикл будет ждать

	f.sessionRepo.On("GetByID", uint(1)).Return(session, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).Return(running, nil)

	f.autopilot.Start(context.Background(), 1)
	f.autopilot.Start(context.Background(), 1)
	defer f.autopilot.StopAll()

	time.Sleep(50 * time.Millisecond)

	// Один цикл — одно чтение сессии перед ожиданием дедлайна
	f.sessionRepo.AssertNumberOfCalls(t, "GetByID", 1)
}

// Restore после рестарта процесса поднимает циклы только для активных
// auto-сессий: таймеры восстанавливаются из started_at активного вопроса
func TestAutopilot_RestoreStartsOnlyAutoSessions(t *testing.T) {
	f := newAutopilotFixture()

	auto := autoSession(0)
	manual := activeSession(0)
	manual.ID = 2

	restored := make(chan struct{})

	f.sessionRepo.On("ListActive").Return([]entity.Session{*auto, *manual}, nil)
	f.sessionRepo.On("GetByID", uint(1)).Return(auto, nil)
	f.questionRepo.On("GetBySessionAndPosition", uint(1), 0).
		Run(func(mock.Arguments) {
			close(restored)
		}).
		Return(activeQuestion(0, 0), nil)

	require.NoError(t, f.autopilot.Restore(context.Background()))
	defer f.autopilot.StopAll()

	select {
	case <-restored:
	case <-time.After(2 * time.Second):
		t.Fatal("autopilot loop was not restored for the auto session")
	}

	// Manual-сессию двигает только ведущий
	f.sessionRepo.AssertNotCalled(t, "GetByID", uint(2))
}
