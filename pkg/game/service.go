// Package game ties the scorer to game records. Scoring is always answered
// from the submitted rolls; persisting them, and the final score once the game
// is over, happens in the background and never changes the answer.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/mchmarny/bowler/pkg/data"
	"github.com/mchmarny/bowler/pkg/score"
	"golang.org/x/sync/singleflight"
)

// WriteTimeoutDefault bounds each background write.
const WriteTimeoutDefault = 5 * time.Second

// Store is the persistence the service needs.
type Store interface {
	CreateGame(ctx context.Context, start time.Time) (*data.Game, error)
	GetGame(ctx context.Context, id int64) (*data.Game, error)
	ListGames(ctx context.Context, limit int) ([]*data.Game, error)
	SaveRolls(ctx context.Context, id int64, rolls []int) error
	CompleteGame(ctx context.Context, id int64, end time.Time, finalScore int) error
}

// View is a stored game together with the state derived from its rolls.
type View struct {
	Game  *data.Game      `json:"game" yaml:"game"`
	State score.GameState `json:"game_state" yaml:"gameState"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithWriteTimeout sets the per-write timeout of background persistence.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithLogger sets the logger used for background write failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service starts games and scores roll submissions.
type Service struct {
	store        Store
	now          func() time.Time
	writeTimeout time.Duration
	logger       *slog.Logger

	inflight sync.WaitGroup
	writes   singleflight.Group
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		now:          time.Now,
		writeTimeout: WriteTimeoutDefault,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start creates a new game record.
func (s *Service) Start(ctx context.Context) (*data.Game, error) {
	g, err := s.store.CreateGame(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("starting game: %w", err)
	}
	s.logger.Debug("game started", "id", g.ID)
	return g, nil
}

// Get returns the stored game and the state re-derived from its rolls.
func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	g, err := s.store.GetGame(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting game %d: %w", id, err)
	}
	return &View{Game: g, State: score.Score(g.Rolls)}, nil
}

// List returns the most recent games.
func (s *Service) List(ctx context.Context, limit int) ([]*data.Game, error) {
	list, err := s.store.ListGames(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	return list, nil
}

// Score validates and scores rolls, the full history submitted so far. When
// id is positive the submission is recorded in the background, and once the
// game is over its final score and end time are written as well. Failures of
// those writes are logged only.
func (s *Service) Score(ctx context.Context, id int64, rolls []int) (score.GameState, error) {
	if err := score.Validate(rolls); err != nil {
		return score.GameState{}, err
	}

	state := score.Score(rolls)
	if id > 0 {
		s.record(ctx, id, slices.Clone(rolls), state)
	}

	return state, nil
}

// Wait blocks until all background writes have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) record(ctx context.Context, id int64, rolls []int, state score.GameState) {
	// detach from the request so the write outlives the response
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()

		if err := s.store.SaveRolls(wctx, id, rolls); err != nil {
			s.logger.Error("failed to save rolls", "game", id, "rolls", len(rolls), "error", err)
		}

		if !state.GameOver {
			return
		}

		if err := s.complete(wctx, id, state.TotalScore); err != nil {
			s.logger.Error("failed to record game result", "game", id, "score", state.TotalScore, "error", err)
		}
	}()
}

// complete writes the game result. Concurrent completions of the same game
// share a single write.
func (s *Service) complete(ctx context.Context, id int64, total int) error {
	key := strconv.FormatInt(id, 10) + ":" + strconv.Itoa(total)
	_, err, shared := s.writes.Do(key, func() (any, error) {
		return nil, s.store.CompleteGame(ctx, id, s.now(), total)
	})
	if shared {
		s.logger.Debug("game result write shared", "game", id)
	}
	if err != nil {
		return err
	}
	s.logger.Info("game completed", "game", id, "score", total)
	return nil
}

// IsNotFound reports whether err means the requested game does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, data.ErrGameNotFound)
}
