package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/bowler/pkg/config"
	"github.com/mchmarny/bowler/pkg/data"
	"github.com/mchmarny/bowler/pkg/game"
	"github.com/mchmarny/bowler/pkg/logging"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appConfigKey = "app-config"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	errNotInitialized = errors.New("app not initialized")

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	configDirFlag = &urfave.StringFlag{
		Name:  "config",
		Usage: "Path to the config directory (optional, defaults to $HOME/.bowler)",
	}

	dbFlag = &urfave.StringFlag{
		Name:  "db",
		Usage: "Path to the Sqlite database file, or DSN when db_driver is postgres",
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml] (optional, overrides config)",
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Dir    string
	DBPath string
	Config *config.Config
	Store  *data.Store
}

func (a *appConfig) games(logger *slog.Logger) *game.Service {
	return game.NewService(a.Store,
		game.WithWriteTimeout(a.Config.WriteTimeout),
		game.WithLogger(logger),
	)
}

func getConfig(cmd *urfave.Command) (*appConfig, error) {
	cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig)
	if !ok || cfg == nil {
		return nil, errNotInitialized
	}
	return cfg, nil
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  config.AppName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Ten-pin bowling scorer with a local game API",
		Flags: []urfave.Flag{
			debugFlag,
			configDirFlag,
			dbFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			scoreCmd,
			gameCmd,
			serverCmd,
			resetCmd,
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			cfg, err := initApp(cmd)
			if err != nil {
				return ctx, err
			}
			if cmd.Metadata == nil {
				cmd.Metadata = map[string]any{}
			}
			cmd.Metadata[appConfigKey] = cfg
			return ctx, nil
		},
		After: func(_ context.Context, cmd *urfave.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.Store != nil {
				cfg.Store.Close()
			}
			return nil
		},
	}
}

func initApp(cmd *urfave.Command) (*appConfig, error) {
	dir := cmd.String(configDirFlag.Name)
	if dir == "" {
		d, created, err := config.GetOrCreateHomeDir(config.AppName)
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		slog.Debug("home dir", "path", d, "created", created)
		dir = d
	}

	c, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cmd.Bool(debugFlag.Name) {
		c.LogLevel = "debug"
	}
	if f := cmd.String(formatFlag.Name); f != "" {
		c.Format = normalizeFormat(f)
	}
	if v := cmd.String(dbFlag.Name); v != "" {
		c.DBDSN = v
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}

	logging.SetDefaultCLILogger(c.LogLevel)

	cfg := &appConfig{Dir: dir, Config: c}

	dsn := c.DBDSN
	if c.DBDriver == config.DriverSQLite {
		if dsn == "" {
			dsn = filepath.Join(dir, data.DataFileName)
		}
		cfg.DBPath = dsn
	}

	store, err := data.Open(c.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	cfg.Store = store

	slog.Debug("app initialized", "config", dir, "driver", c.DBDriver)
	return cfg, nil
}

func normalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == "yml" {
		return config.FormatYAML
	}
	return f
}

func writer(cmd *urfave.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func encode(w io.Writer, format string, v any) error {
	if format == config.FormatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
