package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mchmarny/bowler/pkg/data"
	"github.com/mchmarny/bowler/pkg/game"
	bhttp "github.com/mchmarny/bowler/pkg/http"
	urfave "github.com/urfave/cli/v3"
)

var (
	gameListLimitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: "Limits number of games returned",
		Value: data.ListLimitDefault,
	}

	gameServerFlag = &urfave.StringFlag{
		Name:  "server",
		Usage: "URL of a running bowler server to read the game from (optional)",
	}

	gameCmd = &urfave.Command{
		Name:            "game",
		Aliases:         []string{"g"},
		Usage:           "Start, list, and show games",
		HideHelpCommand: true,
		Commands: []*urfave.Command{
			{
				Name:   "start",
				Usage:  "Start a new game and print its ID",
				Action: cmdGameStart,
			},
			{
				Name:   "list",
				Usage:  "List the most recent games",
				Flags:  []urfave.Flag{gameListLimitFlag},
				Action: cmdGameList,
			},
			{
				Name:      "show",
				Usage:     "Show a game and its current score",
				ArgsUsage: "ID",
				Flags:     []urfave.Flag{gameServerFlag},
				Action:    cmdGameShow,
			},
		},
	}
)

func cmdGameStart(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	g, err := cfg.games(slog.Default()).Start(ctx)
	if err != nil {
		return err
	}

	return encode(writer(cmd), cfg.Config.Format, g)
}

func cmdGameList(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	list, err := cfg.games(slog.Default()).List(ctx, int(cmd.Int(gameListLimitFlag.Name)))
	if err != nil {
		return err
	}

	return encode(writer(cmd), cfg.Config.Format, list)
}

func cmdGameShow(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	id, err := parseGameID(cmd.Args().First())
	if err != nil {
		return err
	}

	if server := cmd.String(gameServerFlag.Name); server != "" {
		url := fmt.Sprintf("%s/games/%d", strings.TrimRight(server, "/"), id)
		var v game.View
		if err := bhttp.GetJSON(ctx, url, &v); err != nil {
			return fmt.Errorf("getting game %d: %w", id, err)
		}
		return encode(writer(cmd), cfg.Config.Format, &v)
	}

	v, err := cfg.games(slog.Default()).Get(ctx, id)
	if err != nil {
		return err
	}

	return encode(writer(cmd), cfg.Config.Format, v)
}

func parseGameID(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("game ID required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid game ID: %q", s)
	}
	return id, nil
}
