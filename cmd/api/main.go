package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/carelink-api/config"
	"github.com/jwalitptl/carelink-api/internal/app"
	"github.com/jwalitptl/carelink-api/internal/repository/postgres"
	"github.com/jwalitptl/carelink-api/internal/service/notification"
	"github.com/jwalitptl/carelink-api/pkg/validator"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "carelink-api",
		Short:        "CareLink marketplace API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var withWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(withWorker)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", true, "run the outbox processor in this process")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			app.NewLogger(cfg.Log)

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info().Msg("Schema is up to date")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			rt, err := app.Open(cfg, app.NewLogger(cfg.Log))
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().
				Int64("notifications", res.Notifications).
				Int64("outbox_events", res.OutboxEvents).
				Msg("Retention sweep finished")
			return nil
		},
	}
}

func runServer(withWorker bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	lg := app.NewLogger(cfg.Log)

	if err := validator.RegisterGin(); err != nil {
		return err
	}

	rt, err := app.Open(cfg, lg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rt.Broker != nil {
		go func() {
			if err := notification.RunRelay(ctx, rt.Broker, cfg.Redis.Channel, rt.Live, lg); err != nil {
				lg.Error(err, "Notification relay stopped")
			}
		}()
	}
	if withWorker {
		go rt.Processor.Start(ctx)
	}

	srv := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        rt.Router(rt.Checks()).Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("Server exited")
	return nil
}
