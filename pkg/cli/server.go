package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mchmarny/bowler/pkg/logging"
	urfave "github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 30
	serverMaxHeaderBytes      = 20
)

var (
	portFlag = &urfave.IntFlag{
		Name:  "port",
		Usage: "Port on which the server will listen (optional, overrides config)",
	}

	hostFlag = &urfave.StringFlag{
		Name:  "host",
		Usage: "Address on which the server will listen (optional, overrides config)",
	}

	serverCmd = &urfave.Command{
		Name:            "server",
		Aliases:         []string{"serve"},
		Usage:           "Start the game HTTP API",
		HideHelpCommand: true,
		Action:          cmdStartServer,
		Flags: []urfave.Flag{
			portFlag,
			hostFlag,
		},
	}
)

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.IsSet(portFlag.Name) {
		cfg.Config.Port = int(cmd.Int(portFlag.Name))
	}
	if h := cmd.String(hostFlag.Name); h != "" {
		cfg.Config.Host = h
	}
	if err := cfg.Config.Validate(); err != nil {
		return fmt.Errorf("validating server flags: %w", err)
	}

	logger := logging.NewServerLogger(os.Stdout, cfg.Config.LogLevel)
	slog.SetDefault(logger)

	svc := cfg.games(logger)
	address := cfg.Config.Address()

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(svc),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", fmt.Sprintf("http://%s", address), "driver", cfg.Config.DBDriver)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}

	// completion writes run detached from requests, drain them before the db closes
	svc.Wait()
	slog.Info("server stopped")
	return nil
}

func makeRouter(svc gameService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthAPIHandler)

	// Game API
	mux.HandleFunc("POST /start_game", startGameAPIHandler(svc))
	mux.HandleFunc("POST /calculate_score", calculateScoreAPIHandler(svc))
	mux.HandleFunc("GET /games", listGamesAPIHandler(svc))
	mux.HandleFunc("GET /games/{id}", getGameAPIHandler(svc))

	return mux
}
