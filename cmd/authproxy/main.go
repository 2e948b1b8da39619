package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/smolib/backend/internal/authproxy/server"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "authproxy",
		Usage:   "stateless auth proxy in front of the smolib identity provider",
		Version: versioninfo.Short(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "supabase-url",
				Usage:    "base URL of the Supabase project",
				Required: true,
				EnvVars:  []string{"SUPABASE_URL"},
			},
			&cli.StringFlag{
				Name:     "supabase-key",
				Usage:    "API key for the Supabase auth endpoint",
				Required: true,
				EnvVars:  []string{"SUPABASE_ANON_KEY", "SUPABASE_KEY", "SUPABASE_SERVICE_ROLE_KEY"},
			},
			&cli.StringFlag{
				Name:    "bind",
				Usage:   "Specify the local IP/port to bind to",
				Value:   ":8000",
				EnvVars: []string{"AUTHPROXY_BIND"},
			},
			&cli.StringFlag{
				Name:    "metrics-listen",
				Usage:   "IP or address, and port, to listen on for metrics APIs",
				Value:   ":3000",
				EnvVars: []string{"AUTHPROXY_METRICS_LISTEN"},
			},
			&cli.StringSliceFlag{
				Name:    "allowed-origins",
				Usage:   "origins allowed for credentialed cross-origin browser requests",
				Value:   cli.NewStringSlice("https://smolib.com", "https://www.smolib.com"),
				EnvVars: []string{"AUTHPROXY_ALLOWED_ORIGINS"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log verbosity level (eg: warn, info, debug)",
				EnvVars: []string{"AUTHPROXY_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
			},
		},
		Action: runServe,
	}
	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func runServe(cctx *cli.Context) error {
	logger := configLogger(cctx, os.Stdout)

	srv, err := server.New(server.Config{
		Logger:         logger,
		SupabaseURL:    cctx.String("supabase-url"),
		SupabaseKey:    cctx.String("supabase-key"),
		AllowedOrigins: cctx.StringSlice("allowed-origins"),
	})
	if err != nil {
		return fmt.Errorf("failed to construct server: %w", err)
	}

	// prometheus HTTP endpoint: /metrics
	go func() {
		if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start metrics endpoint", "error", err)
		}
	}()

	go func() {
		if err := srv.Start(cctx.String("bind")); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server shutting down unexpectedly", "error", err)
		}
	}()
	logger.Info("authproxy started", "bind", cctx.String("bind"))

	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exitSignals
	logger.Info("received OS exit signal", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("graceful shutdown complete")
	return nil
}
