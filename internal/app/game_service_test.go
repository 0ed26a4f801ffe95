package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-learning-service/internal/app"
	"quiz-learning-service/internal/domain"
	"quiz-learning-service/internal/infra/memory"
)

var (
	student = domain.Identity{UserID: "u1", Role: domain.RoleStudent}
	other   = domain.Identity{UserID: "u2", Role: domain.RoleStudent}
)

type testEnv struct {
	sessions *memory.SessionStore
	catalog  *memory.CatalogStore
	game     *app.GameService
	ranking  *app.RankingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	catalog := memory.NewCatalogStore()

	require.NoError(t, catalog.CreateModule(ctx, domain.Module{ID: "m1", Title: "Basics", Order: 1, TimePerQuestion: 30, Active: true}))
	require.NoError(t, catalog.CreateModule(ctx, domain.Module{ID: "m2", Title: "Advanced", Order: 2, Active: true}))
	for i := 0; i < 10; i++ {
		require.NoError(t, catalog.CreateQuestion(ctx, domain.Question{
			ID:       fmt.Sprintf("q%d", i),
			ModuleID: "m1",
			Prompt:   fmt.Sprintf("Question %d", i),
			Options:  []string{"a", "b", "c", "d"},
			Correct:  i % 4,
			Order:    i,
			Active:   true,
		}))
	}
	require.NoError(t, catalog.CreateQuestion(ctx, domain.Question{
		ID: "foreign", ModuleID: "m2", Prompt: "Elsewhere", Options: []string{"a", "b", "c", "d"}, Active: true,
	}))
	for _, u := range []domain.User{
		{ID: "u1", Name: "Ana", Phone: "5511000000001", Role: domain.RoleStudent, Active: true},
		{ID: "u2", Name: "Bruno", Phone: "5511000000002", Role: domain.RoleStudent, Active: true},
		{ID: "u3", Name: "Carla", Phone: "5511000000003", Role: domain.RoleStudent, Active: true},
	} {
		require.NoError(t, catalog.CreateUser(ctx, u))
	}

	ranking := app.NewRankingService(memory.NewRankingProjection(sessions, catalog), memory.NewRankingCache(time.Minute))
	clock := newTickClock()
	game := app.NewGameService(sessions, sessions, catalog, memory.NewQuestionCache(catalog, time.Minute),
		app.WithClock(clock.Now),
		app.WithBestListener(ranking),
	)
	return &testEnv{sessions: sessions, catalog: catalog, game: game, ranking: ranking}
}

// play answers the first `correct` questions right and the rest wrong.
func (e *testEnv) play(t *testing.T, who domain.Identity, correct, total int) domain.FinishResult {
	t.Helper()
	ctx := context.Background()
	session, err := e.game.StartSession(ctx, who, "m1")
	require.NoError(t, err)
	for i := 0; i < total; i++ {
		selected := i % 4
		if i >= correct {
			selected = (selected + 1) % 4
		}
		_, err := e.game.RecordAnswer(ctx, who, session.ID, fmt.Sprintf("q%d", i), selected, 10*time.Second)
		require.NoError(t, err)
	}
	res, err := e.game.FinishSession(ctx, who, session.ID)
	require.NoError(t, err)
	return res
}

func TestRecordAnswerUpdatesCounters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.game.StartSession(ctx, student, "m1")
	require.NoError(t, err)
	assert.False(t, session.Finished)
	assert.Zero(t, session.TotalAnswered)

	res, err := env.game.RecordAnswer(ctx, student, session.ID, "q0", 0, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, res.Answer.IsCorrect)
	assert.Positive(t, res.Answer.Points)
	assert.Equal(t, 1, res.Session.Streak)

	res, err = env.game.RecordAnswer(ctx, student, session.ID, "q1", 1, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Session.Streak)
	scoreBefore := res.Session.Score

	res, err = env.game.RecordAnswer(ctx, student, session.ID, "q2", 0, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, res.Answer.IsCorrect)
	assert.Zero(t, res.Answer.Points)
	assert.Equal(t, 2, res.CorrectOption)
	assert.Zero(t, res.Session.Streak, "incorrect answer resets the streak")
	assert.Equal(t, 2, res.Session.MaxStreak)
	assert.Equal(t, scoreBefore, res.Session.Score, "incorrect answer never increases score")
	assert.Equal(t, 3, res.Session.TotalAnswered)
	assert.Equal(t, 2, res.Session.CorrectAnswers)

	detail, err := env.game.GetSession(ctx, student, session.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Answers, 3)
	assert.Equal(t, detail.Session.Counters(), detail.Replayed)
}

func TestRecordAnswerErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	session, err := env.game.StartSession(ctx, student, "m1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		who        domain.Identity
		sessionID  string
		questionID string
		selected   int
		kind       error
	}{
		{"missing session", student, "nope", "q0", 0, domain.ErrNotFound},
		{"foreign session", other, session.ID, "q0", 0, domain.ErrNotFound},
		{"missing question", student, session.ID, "nope", 0, domain.ErrNotFound},
		{"question of another module", student, session.ID, "foreign", 0, domain.ErrNotFound},
		{"option below range", student, session.ID, "q0", -1, domain.ErrBadRequest},
		{"option above range", student, session.ID, "q0", 4, domain.ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.game.RecordAnswer(ctx, tt.who, tt.sessionID, tt.questionID, tt.selected, time.Second)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	detail, err := env.game.GetSession(ctx, student, session.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Answers, "rejected submissions leave no ledger rows")
}

func TestRecordAnswerOnFinishedSessionConflicts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.play(t, student, 1, 2)

	_, err := env.game.RecordAnswer(ctx, student, res.Session.ID, "q3", 3, time.Second)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrSessionFinished)
}

func TestRecordAnswerRejectsRepeatedQuestion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	session, err := env.game.StartSession(ctx, student, "m1")
	require.NoError(t, err)

	first, err := env.game.RecordAnswer(ctx, student, session.ID, "q0", 0, time.Second)
	require.NoError(t, err)

	_, err = env.game.RecordAnswer(ctx, student, session.ID, "q0", 0, time.Second)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrQuestionAnswered)

	detail, err := env.game.GetSession(ctx, student, session.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Answers, 1)
	assert.Equal(t, first.Session.Counters(), detail.Session.Counters(), "a repeat leaves the counters alone")

	res, err := env.game.FinishSession(ctx, student, session.ID)
	require.NoError(t, err)
	assert.True(t, res.Session.Nota.Decimal.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, res.Session.TotalAnswered)
}

func TestStartSessionRequiresPlayableModule(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.catalog.SoftDeleteModule(ctx, "m2", time.Now()))

	_, err := env.game.StartSession(ctx, student, "m2")
	assert.ErrorIs(t, err, domain.ErrModuleNotFound)
	_, err = env.game.StartSession(ctx, student, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinishComputesNota(t *testing.T) {
	tests := []struct {
		correct, total int
		want           string
	}{
		{0, 0, "0"},
		{7, 10, "7"},
		{2, 3, "6.667"},
		{1, 3, "3.333"},
		{3, 3, "10"},
		{0, 4, "0"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.correct, tt.total), func(t *testing.T) {
			env := newTestEnv(t)
			res := env.play(t, student, tt.correct, tt.total)

			require.True(t, res.Transitioned)
			require.True(t, res.Session.Nota.Valid)
			assert.True(t, res.Session.Nota.Decimal.Equal(decimal.RequireFromString(tt.want)), "nota %s", res.Session.Nota.Decimal)
			assert.True(t, res.Session.Finished)
			assert.NotNil(t, res.Session.FinishedAt)
			assert.True(t, res.Session.IsBest, "first finished session becomes best")
		})
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first := env.play(t, student, 3, 4)

	again, err := env.game.FinishSession(ctx, student, first.Session.ID)
	require.NoError(t, err)
	assert.False(t, again.Transitioned)
	assert.True(t, first.Session.Nota.Decimal.Equal(again.Session.Nota.Decimal))
	assert.Equal(t, first.Session.Score, again.Session.Score)
	assert.Equal(t, first.Session.IsBest, again.Session.IsBest)
	assert.Equal(t, first.Session.FinishedAt, again.Session.FinishedAt)
}

// flakySlotStore fails the next `failures` best-slot acquisitions.
type flakySlotStore struct {
	*memory.SessionStore
	failures atomic.Int32
}

func (f *flakySlotStore) WithBestSlot(ctx context.Context, userID, moduleID string, fn func(app.BestSlot) error) error {
	if f.failures.Add(-1) >= 0 {
		return errors.New("connection reset")
	}
	return f.SessionStore.WithBestSlot(ctx, userID, moduleID, fn)
}

func TestFinishRetryRepairsFailedConsolidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	store := &flakySlotStore{SessionStore: env.sessions}
	store.failures.Store(1)
	game := app.NewGameService(store, store, env.catalog, memory.NewQuestionCache(env.catalog, time.Minute))

	session, err := game.StartSession(ctx, student, "m1")
	require.NoError(t, err)
	_, err = game.RecordAnswer(ctx, student, session.ID, "q0", 0, time.Second)
	require.NoError(t, err)

	_, err = game.FinishSession(ctx, student, session.ID)
	require.ErrorIs(t, err, domain.ErrInternal)
	_, err = game.BestSession(ctx, student, "m1")
	require.ErrorIs(t, err, domain.ErrNotFound, "the finish committed but no best was recorded")

	retry, err := game.FinishSession(ctx, student, session.ID)
	require.NoError(t, err)
	assert.False(t, retry.Transitioned)
	assert.True(t, retry.Session.IsBest)
	assert.True(t, retry.Session.Nota.Decimal.Equal(decimal.NewFromInt(10)))

	best, err := game.BestSession(ctx, student, "m1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, best.ID)

	// further retries change nothing
	again, err := game.FinishSession(ctx, student, session.ID)
	require.NoError(t, err)
	assert.True(t, again.Session.IsBest)
	assert.Equal(t, retry.Session.FinishedAt, again.Session.FinishedAt)
	assertSingleBest(t, env, session.ID)
}

func TestFinishMissingSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.game.FinishSession(context.Background(), student, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHigherNotaWinsOverHigherScore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := finishedSession("s1", "7", 700, 3, t0)
	second := finishedSession("s2", "8", 650, 2, t0.Add(time.Hour))
	for _, s := range []domain.GameSession{first, second} {
		require.NoError(t, env.sessions.Create(ctx, s))
		_, err := env.game.Consolidate(ctx, s)
		require.NoError(t, err)
	}

	best, err := env.game.BestSession(ctx, student, "m1")
	require.NoError(t, err)
	assert.Equal(t, "s2", best.ID)
	assertSingleBest(t, env, "s2")
}

func TestEqualAttemptKeepsEarlierBest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := finishedSession("s1", "8", 650, 2, t0)
	second := finishedSession("s2", "8", 650, 2, t0.Add(time.Minute))
	require.NoError(t, env.sessions.Create(ctx, first))
	require.NoError(t, env.sessions.Create(ctx, second))

	isBest, err := env.game.Consolidate(ctx, first)
	require.NoError(t, err)
	assert.True(t, isBest)
	isBest, err = env.game.Consolidate(ctx, second)
	require.NoError(t, err)
	assert.False(t, isBest)

	assertSingleBest(t, env, "s1")
}

func TestConsolidateTieBreakers(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		current  domain.GameSession
		incoming domain.GameSession
		wantBest string
	}{
		{"higher score on equal nota", finishedSession("a", "8", 600, 2, t0), finishedSession("b", "8", 700, 1, t0.Add(time.Minute)), "b"},
		{"higher max streak on equal score", finishedSession("a", "8", 600, 2, t0), finishedSession("b", "8", 600, 4, t0.Add(time.Minute)), "b"},
		{"lower nota loses", finishedSession("a", "9", 100, 1, t0), finishedSession("b", "8", 900, 9, t0.Add(time.Minute)), "a"},
		{"later identical loses", finishedSession("a", "5", 500, 1, t0), finishedSession("b", "5", 500, 1, t0.Add(time.Second)), "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			for _, s := range []domain.GameSession{tt.current, tt.incoming} {
				require.NoError(t, env.sessions.Create(ctx, s))
				_, err := env.game.Consolidate(ctx, s)
				require.NoError(t, err)
			}
			assertSingleBest(t, env, tt.wantBest)
		})
	}
}

func TestConsolidateRejectsUnfinished(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.game.Consolidate(context.Background(), domain.GameSession{ID: "x", UserID: "u1", ModuleID: "m1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestConcurrentFinishesLeaveExactlyOneBest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	const n = 12

	ids := make([]string, n)
	for i := 0; i < n; i++ {
		session, err := env.game.StartSession(ctx, student, "m1")
		require.NoError(t, err)
		ids[i] = session.ID
		for q := 0; q < 4; q++ {
			selected := q % 4
			if q >= i%5 {
				selected = (selected + 1) % 4
			}
			_, err := env.game.RecordAnswer(ctx, student, session.ID, fmt.Sprintf("q%d", q), selected, time.Second)
			require.NoError(t, err)
		}
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.game.FinishSession(ctx, student, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	all, err := env.game.ListSessions(ctx, student, "m1")
	require.NoError(t, err)
	var best *domain.GameSession
	for i := range all {
		if all[i].IsBest {
			require.Nil(t, best, "more than one best session")
			best = &all[i]
		}
	}
	require.NotNil(t, best)
	for _, s := range all {
		assert.LessOrEqual(t, app.CompareSessions(s, *best), 0, "session %s beats the best", s.ID)
	}
}

func TestBestSessionsVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.play(t, student, 2, 4)

	own, err := env.game.BestSessions(ctx, student, "u1")
	require.NoError(t, err)
	assert.Len(t, own, 1)

	_, err = env.game.BestSessions(ctx, other, "u1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	admin := domain.Identity{UserID: "admin", Role: domain.RoleAdministrator}
	viaAdmin, err := env.game.BestSessions(ctx, admin, "u1")
	require.NoError(t, err)
	assert.Len(t, viaAdmin, 1)
}

func TestModuleQuestionsHideAnswers(t *testing.T) {
	env := newTestEnv(t)
	questions, err := env.game.ModuleQuestions(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, questions, 10)
	for _, q := range questions {
		assert.Equal(t, -1, q.Correct)
		assert.Empty(t, q.Explanation)
	}
}

func finishedSession(id, nota string, score, maxStreak int, at time.Time) domain.GameSession {
	return domain.GameSession{
		ID:        id,
		UserID:    "u1",
		ModuleID:  "m1",
		Score:     score,
		MaxStreak: maxStreak,
		Nota:      decimal.NewNullDecimal(decimal.RequireFromString(nota)),
		Finished:  true,
		FinishedAt: func() *time.Time {
			t := at
			return &t
		}(),
	}
}

func assertSingleBest(t *testing.T, env *testEnv, wantID string) {
	t.Helper()
	all, err := env.sessions.FindByUserAndModule(context.Background(), "u1", "m1")
	require.NoError(t, err)
	for _, s := range all {
		assert.Equal(t, s.ID == wantID, s.IsBest, "session %s best flag", s.ID)
	}
}

type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickClock() *tickClock {
	return &tickClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so finish times are strictly ordered.
func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
