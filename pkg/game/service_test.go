package game

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mchmarny/bowler/pkg/data"
	"github.com/mchmarny/bowler/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	games     map[int64]*data.Game
	nextID    int64
	saves     int
	completes int
	saveErr   error
	finishErr error
	release   chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{games: map[int64]*data.Game{}}
}

func (f *fakeStore) CreateGame(_ context.Context, start time.Time) (*data.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	g := &data.Game{ID: f.nextID, StartTime: start, Rolls: []int{}}
	f.games[g.ID] = g
	return g, nil
}

func (f *fakeStore) GetGame(_ context.Context, id int64) (*data.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	if !ok {
		return nil, data.ErrGameNotFound
	}
	c := *g
	return &c, nil
}

func (f *fakeStore) ListGames(_ context.Context, _ int) ([]*data.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]*data.Game, 0, len(f.games))
	for _, g := range f.games {
		list = append(list, g)
	}
	return list, nil
}

func (f *fakeStore) SaveRolls(_ context.Context, id int64, rolls []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	g, ok := f.games[id]
	if !ok {
		return data.ErrGameNotFound
	}
	if len(rolls) >= len(g.Rolls) {
		g.Rolls = rolls
	}
	return nil
}

func (f *fakeStore) CompleteGame(_ context.Context, id int64, end time.Time, finalScore int) error {
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
	if f.finishErr != nil {
		return f.finishErr
	}
	g, ok := f.games[id]
	if !ok {
		return data.ErrGameNotFound
	}
	if g.EndTime == nil {
		g.EndTime = &end
	}
	g.FinalScore = &finalScore
	return nil
}

var fixedNow = time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store) (*Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := NewService(store,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger),
		WithWriteTimeout(time.Second),
	)
	return svc, &buf
}

func perfectGame() []int {
	return []int{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10}
}

func TestService_Start(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store)

	g, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.ID)
	assert.Equal(t, fixedNow, g.StartTime)
}

func TestService_ScoreRejectsInvalidRolls(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store)

	g, err := svc.Start(context.Background())
	require.NoError(t, err)

	_, err = svc.Score(context.Background(), g.ID, []int{3, 11})
	require.ErrorIs(t, err, score.ErrInvalidRoll)

	svc.Wait()
	assert.Equal(t, 0, store.saves)
}

func TestService_ScoreRecordsRolls(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	g, err := svc.Start(ctx)
	require.NoError(t, err)

	state, err := svc.Score(ctx, g.ID, []int{10, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 24, state.TotalScore)
	assert.False(t, state.GameOver)

	svc.Wait()
	v, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 3, 4}, v.Game.Rolls)
	assert.Equal(t, state, v.State)
	assert.False(t, v.Game.Completed())
	assert.Equal(t, 0, store.completes)
}

func TestService_ScoreCompletesGame(t *testing.T) {
	store := newFakeStore()
	svc, buf := newTestService(t, store)
	ctx := context.Background()

	g, err := svc.Start(ctx)
	require.NoError(t, err)

	state, err := svc.Score(ctx, g.ID, perfectGame())
	require.NoError(t, err)
	assert.True(t, state.GameOver)
	assert.Equal(t, 300, state.TotalScore)

	svc.Wait()
	v, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	require.True(t, v.Game.Completed())
	assert.Equal(t, fixedNow, *v.Game.EndTime)
	assert.Equal(t, 300, *v.Game.FinalScore)
	assert.Contains(t, buf.String(), "game completed")
}

func TestService_RepeatedCompletionIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	g, err := svc.Start(ctx)
	require.NoError(t, err)

	first, err := svc.Score(ctx, g.ID, perfectGame())
	require.NoError(t, err)
	second, err := svc.Score(ctx, g.ID, perfectGame())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	svc.Wait()
	v, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, *v.Game.FinalScore)
	assert.Equal(t, fixedNow, *v.Game.EndTime)
}

func TestService_ConcurrentCompletionsShareWrite(t *testing.T) {
	store := newFakeStore()
	store.release = make(chan struct{})
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	g, err := svc.Start(ctx)
	require.NoError(t, err)

	const submissions = 5
	for i := 0; i < submissions; i++ {
		_, err := svc.Score(ctx, g.ID, perfectGame())
		require.NoError(t, err)
	}

	// let the goroutines pile up on the in-flight write before releasing it
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	svc.Wait()

	assert.GreaterOrEqual(t, store.completes, 1)
	assert.LessOrEqual(t, store.completes, submissions)
	v, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, *v.Game.FinalScore)
}

func TestService_PersistenceFailureDoesNotChangeResult(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	store.finishErr = errors.New("disk full")
	svc, buf := newTestService(t, store)
	ctx := context.Background()

	g, err := svc.Start(ctx)
	require.NoError(t, err)

	state, err := svc.Score(ctx, g.ID, perfectGame())
	require.NoError(t, err)
	assert.Equal(t, score.Score(perfectGame()), state)

	svc.Wait()
	out := buf.String()
	assert.Contains(t, out, "failed to save rolls")
	assert.Contains(t, out, "failed to record game result")
}

func TestService_UnknownGameStillScores(t *testing.T) {
	store := newFakeStore()
	svc, buf := newTestService(t, store)

	state, err := svc.Score(context.Background(), 42, perfectGame())
	require.NoError(t, err)
	assert.Equal(t, 300, state.TotalScore)

	svc.Wait()
	assert.Contains(t, buf.String(), "failed to record game result")
}

func TestService_NoGameIDSkipsPersistence(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store)

	state, err := svc.Score(context.Background(), 0, []int{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 7, state.TotalScore)

	svc.Wait()
	assert.Equal(t, 0, store.saves)
}

func TestService_ScoreDoesNotRetainCallerSlice(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	g, err := svc.Start(ctx)
	require.NoError(t, err)

	rolls := []int{3, 4}
	_, err = svc.Score(ctx, g.ID, rolls)
	require.NoError(t, err)
	svc.Wait()
	rolls[0] = 9

	v, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, v.Game.Rolls)
}

func TestService_GetNotFound(t *testing.T) {
	svc, _ := newTestService(t, newFakeStore())
	_, err := svc.Get(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestService_List(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Start(ctx)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
