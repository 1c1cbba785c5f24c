package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const (
	// ListLimitDefault caps ListGames when no positive limit is given.
	ListLimitDefault = 50

	insertGameSQL = `INSERT INTO game (start_time) VALUES (?) RETURNING id`

	selectGameSQL = `SELECT
			id,
			start_time,
			end_time,
			final_score,
			rolls
		FROM game
		WHERE id = ?
	`

	listGamesSQL = `SELECT
			id,
			start_time,
			end_time,
			final_score,
			rolls
		FROM game
		ORDER BY start_time DESC, id DESC
		LIMIT ?
	`

	gameExistsSQL = `SELECT COUNT(*) FROM game WHERE id = ?`

	// older, shorter submissions never replace a longer history
	updateRollsSQL = `UPDATE game SET
			rolls = ?,
			roll_count = ?
		WHERE id = ?
		AND roll_count <= ?
	`

	// the first recorded end time wins, repeated completions are no-ops
	completeGameSQL = `UPDATE game SET
			end_time = COALESCE(end_time, ?),
			final_score = ?
		WHERE id = ?
	`
)

// Game is the persisted record of a single game.
type Game struct {
	ID         int64      `json:"id" yaml:"id"`
	StartTime  time.Time  `json:"start_time" yaml:"startTime"`
	EndTime    *time.Time `json:"end_time,omitempty" yaml:"endTime,omitempty"`
	FinalScore *int       `json:"final_score,omitempty" yaml:"finalScore,omitempty"`
	Rolls      []int      `json:"rolls" yaml:"rolls"`
}

// Completed reports whether the game end has been recorded.
func (g *Game) Completed() bool {
	return g != nil && g.EndTime != nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateGame inserts a new game started at the given time.
func (s *Store) CreateGame(ctx context.Context, start time.Time) (*Game, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}

	start = start.UTC().Truncate(time.Millisecond)

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(insertGameSQL), start.UnixMilli()).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert game")
	}

	return &Game{
		ID:        id,
		StartTime: start,
		Rolls:     []int{},
	}, nil
}

// GetGame returns the game with the given id or ErrGameNotFound.
func (s *Store) GetGame(ctx context.Context, id int64) (*Game, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}

	g, err := scanGame(s.db.QueryRowContext(ctx, s.rebind(selectGameSQL), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, errors.Wrapf(err, "failed to get game: %d", id)
	}

	return g, nil
}

// ListGames returns up to limit games, most recently started first.
func (s *Store) ListGames(ctx context.Context, limit int) ([]*Game, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}

	if limit <= 0 {
		limit = ListLimitDefault
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(listGamesSQL), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list games")
	}
	defer rows.Close()

	list := make([]*Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan game row")
		}
		list = append(list, g)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate game rows")
	}

	return list, nil
}

// SaveRolls records the roll history submitted for a game. A history shorter
// than the stored one is ignored.
func (s *Store) SaveRolls(ctx context.Context, id int64, rolls []int) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}

	if rolls == nil {
		rolls = []int{}
	}

	b, err := json.Marshal(rolls)
	if err != nil {
		return errors.Wrap(err, "failed to marshal rolls")
	}

	res, err := s.db.ExecContext(ctx, s.rebind(updateRollsSQL), string(b), len(rolls), id, len(rolls))
	if err != nil {
		return errors.Wrapf(err, "failed to save rolls for game: %d", id)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n > 0 {
		return nil
	}

	return s.checkExists(ctx, id)
}

// CompleteGame records the end time and final score of a game. Calling it
// again for a completed game keeps the original end time.
func (s *Store) CompleteGame(ctx context.Context, id int64, end time.Time, finalScore int) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}

	end = end.UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx, s.rebind(completeGameSQL), end.UnixMilli(), finalScore, id)
	if err != nil {
		return errors.Wrapf(err, "failed to complete game: %d", id)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrGameNotFound
	}

	return nil
}

func (s *Store) checkExists(ctx context.Context, id int64) error {
	var count int64
	if err := s.db.QueryRowContext(ctx, s.rebind(gameExistsSQL), id).Scan(&count); err != nil {
		return errors.Wrapf(err, "failed to check game: %d", id)
	}
	if count == 0 {
		return ErrGameNotFound
	}
	return nil
}

func scanGame(row rowScanner) (*Game, error) {
	var (
		g          Game
		start      int64
		end        sql.NullInt64
		finalScore sql.NullInt64
		rolls      string
	)

	if err := row.Scan(&g.ID, &start, &end, &finalScore, &rolls); err != nil {
		return nil, err
	}

	g.StartTime = time.UnixMilli(start).UTC()
	if end.Valid {
		t := time.UnixMilli(end.Int64).UTC()
		g.EndTime = &t
	}
	if finalScore.Valid {
		v := int(finalScore.Int64)
		g.FinalScore = &v
	}

	g.Rolls = []int{}
	if rolls != "" {
		if err := json.Unmarshal([]byte(rolls), &g.Rolls); err != nil {
			return nil, errors.Wrapf(err, "failed to decode rolls for game: %d", g.ID)
		}
	}

	return &g, nil
}
