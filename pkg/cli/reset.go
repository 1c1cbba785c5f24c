package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mchmarny/bowler/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var (
	resetYesFlag = &urfave.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Skip the confirmation prompt",
	}

	resetCmd = &urfave.Command{
		Name:            "reset",
		Usage:           "Delete all games and start fresh",
		HideHelpCommand: true,
		Flags:           []urfave.Flag{resetYesFlag},
		Action:          cmdReset,
	}

	// sqlite sidecar files created in WAL mode
	sqliteSuffixes = []string{"", "-wal", "-shm"}
)

func cmdReset(_ context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.DBPath == "" {
		return errors.New("reset is only supported for the sqlite database")
	}

	if !cmd.Bool(resetYesFlag.Name) {
		out := writer(cmd)
		fmt.Fprintf(out, "This will permanently delete all games in %s\n", cfg.DBPath)
		fmt.Fprint(out, "Are you sure? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	// close the DB before deleting the file
	if cfg.Store != nil {
		cfg.Store.Close()
		cfg.Store = nil
	}

	for _, suffix := range sqliteSuffixes {
		if err := os.Remove(cfg.DBPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting database: %w", err)
		}
	}

	slog.Info("database deleted", "path", cfg.DBPath)

	store, err := data.OpenFile(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("re-initializing database: %w", err)
	}
	cfg.Store = store

	slog.Info("database re-initialized", "path", cfg.DBPath)
	fmt.Fprintln(writer(cmd), "Reset complete.")
	return nil
}
