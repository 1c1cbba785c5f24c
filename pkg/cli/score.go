package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	bhttp "github.com/mchmarny/bowler/pkg/http"
	"github.com/mchmarny/bowler/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

var (
	scoreGameFlag = &urfave.IntFlag{
		Name:  "game",
		Usage: "Game ID to record the rolls against (optional)",
	}

	scoreServerFlag = &urfave.StringFlag{
		Name:  "server",
		Usage: "URL of a running bowler server to submit the rolls to (optional)",
	}

	scoreCmd = &urfave.Command{
		Name:            "score",
		Aliases:         []string{"s"},
		Usage:           "Score the rolls made so far (numbers, or X for strike, / for spare, - for miss)",
		ArgsUsage:       "ROLLS...",
		HideHelpCommand: true,
		Flags:           []urfave.Flag{scoreGameFlag, scoreServerFlag},
		Action:          cmdScore,
	}
)

func cmdScore(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	rolls, err := score.ParseRolls(strings.Join(cmd.Args().Slice(), " "))
	if err != nil {
		return fmt.Errorf("parsing rolls: %w", err)
	}

	id := int64(cmd.Int(scoreGameFlag.Name))

	if server := cmd.String(scoreServerFlag.Name); server != "" {
		state, err := scoreRemote(ctx, server, id, rolls)
		if err != nil {
			return err
		}
		return encode(writer(cmd), cfg.Config.Format, state)
	}

	svc := cfg.games(slog.Default())
	state, err := svc.Score(ctx, id, rolls)
	if err != nil {
		return fmt.Errorf("scoring rolls: %w", err)
	}

	// the process exits after printing, finish recording first
	svc.Wait()

	return encode(writer(cmd), cfg.Config.Format, state)
}

type remoteScoreRequest struct {
	GameID int64 `json:"game_id,omitempty"`
	Rolls  []int `json:"rolls"`
}

func scoreRemote(ctx context.Context, server string, id int64, rolls []int) (*score.GameState, error) {
	url := strings.TrimRight(server, "/") + "/calculate_score"
	slog.Debug("submitting rolls", "url", url, "game", id, "rolls", len(rolls))

	var res scoreResponse
	if err := bhttp.PostJSON(ctx, url, remoteScoreRequest{GameID: id, Rolls: rolls}, &res); err != nil {
		var se *bhttp.StatusError
		if errors.As(err, &se) && res.Error != "" {
			return nil, fmt.Errorf("server rejected rolls: %s", res.Error)
		}
		return nil, fmt.Errorf("submitting rolls: %w", err)
	}

	if !res.Success || res.GameState == nil {
		return nil, fmt.Errorf("server returned no game state: %s", res.Error)
	}
	return res.GameState, nil
}
