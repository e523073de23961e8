package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/carelink-api/config"
	"github.com/jwalitptl/carelink-api/internal/app"
	"github.com/jwalitptl/carelink-api/pkg/logger"
)

func setupHealthCheck(rt *app.Runtime, port int, lg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range rt.Checks() {
			if err := check.PingContext(ctx); err != nil {
				http.Error(w, name+" connection failed", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(rt.Gatherer(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	lg := app.NewLogger(cfg.Log).WithFields(map[string]interface{}{"worker_id": workerID()})

	rt, err := app.Open(cfg, lg)
	if err != nil {
		lg.Fatal(err, "Failed to start worker")
	}
	defer rt.Close()

	health := setupHealthCheck(rt, cfg.Worker.HealthPort, lg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		rt.Processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := rt.Sweeper.Start(ctx); err != nil {
			lg.Error(err, "Retention sweeper stopped")
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "Health check server forced to shutdown")
	}
}

func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("worker-%s-%d", hostname, time.Now().UnixNano())
}
