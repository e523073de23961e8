package app

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/carelink-api/config"
	"github.com/jwalitptl/carelink-api/internal/email"
	healthHandler "github.com/jwalitptl/carelink-api/internal/handler/health"
	"github.com/jwalitptl/carelink-api/internal/repository/postgres"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/messaging"
	"github.com/jwalitptl/carelink-api/pkg/messaging/redis"
	"github.com/jwalitptl/carelink-api/pkg/storage"
)

// NewLogger builds the process logger and installs it as the zerolog
// global so request logging and error responses share its settings.
func NewLogger(c config.LogConfig) *logger.Logger {
	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(c.Level),
		Format:     c.Format,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})
	zerolog.SetGlobalLevel(logger.ParseLevel(c.Level))
	log.Logger = *lg.Zerolog()
	return lg
}

// Runtime is an App bound to live infrastructure.
type Runtime struct {
	*App
	DB     *sqlx.DB
	Broker *redis.RedisBroker
}

// Open connects to postgres, and to redis when it is enabled, then builds
// the App on top.
func Open(cfg *config.Config, lg *logger.Logger) (*Runtime, error) {
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	blobs, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	rt := &Runtime{DB: db}
	var broker messaging.Broker
	if cfg.Redis.Enabled {
		rt.Broker, err = redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), lg.Zerolog())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		broker = rt.Broker
	}

	rt.App = New(Deps{
		Config: cfg,
		Logger: lg,
		Repos:  PostgresRepositories(db),
		Blobs:  blobs,
		Mailer: email.NewSMTPService(cfg.SMTP),
		Broker: broker,
	})
	return rt, nil
}

// Checks lists the dependencies readiness depends on.
func (r *Runtime) Checks() map[string]healthHandler.Pinger {
	checks := map[string]healthHandler.Pinger{"database": r.DB}
	if r.Broker != nil {
		checks["redis"] = r.Broker
	}
	return checks
}

func (r *Runtime) Close() {
	if r.Broker != nil {
		if err := r.Broker.Close(); err != nil {
			r.logger.Error(err, "Failed to close redis broker")
		}
	}
	if err := r.DB.Close(); err != nil {
		r.logger.Error(err, "Failed to close database")
	}
}
