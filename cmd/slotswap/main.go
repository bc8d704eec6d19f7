package main

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

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"slotswap-backend/internal/api"
	"slotswap-backend/internal/auth"
	"slotswap-backend/internal/config"
	"slotswap-backend/internal/database"
	"slotswap-backend/internal/events"
	"slotswap-backend/internal/logging"
	"slotswap-backend/internal/metrics"
	"slotswap-backend/internal/swap"
	"slotswap-backend/internal/tracing"
)

func main() {
	app := &cli.App{
		Name:  "slotswap",
		Usage: "Calendar slot swapping service.",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "Listen port, overrides PORT."},
			&cli.BoolFlag{Name: "no-migrate", Usage: "Skip schema migration on startup."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if p := c.String("port"); p != "" {
				cfg.Port = p
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
			if err != nil {
				return fmt.Errorf("failed to init tracing: %w", err)
			}
			defer shutdownTracing(context.Background())

			db, err := database.Open(cfg.Database, logger)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()

			if !c.Bool("no-migrate") {
				if err := database.Migrate(db); err != nil {
					return err
				}
			}

			m := metrics.New()
			issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
			handler := api.NewHandler(
				events.NewService(db, logger),
				swap.NewEngine(db, logger, m),
				auth.NewService(db, issuer, logger),
				logger,
			)

			gin.SetMode(cfg.GinMode)
			router := api.NewRouter(handler, issuer, m, api.RouterOptions{
				ServiceName: cfg.Tracing.ServiceName,
				CORSOrigins: cfg.CORSOrigins,
				Logger:      logger,
			})

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Server running", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema and exit.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Database, logger)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()

			if err := database.Migrate(db); err != nil {
				return err
			}
			logger.Info("Migration complete")
			return nil
		},
	}
}

// setup loads the configuration and installs the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
