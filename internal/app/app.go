// Package app wires repositories, services and handlers into the API and
// worker processes.
package app

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/carelink-api/config"
	"github.com/jwalitptl/carelink-api/internal/email"
	adminHandler "github.com/jwalitptl/carelink-api/internal/handler/admin"
	authHandler "github.com/jwalitptl/carelink-api/internal/handler/auth"
	clinicHandler "github.com/jwalitptl/carelink-api/internal/handler/clinic"
	healthHandler "github.com/jwalitptl/carelink-api/internal/handler/health"
	liveHandler "github.com/jwalitptl/carelink-api/internal/handler/live"
	notificationHandler "github.com/jwalitptl/carelink-api/internal/handler/notification"
	promHandler "github.com/jwalitptl/carelink-api/internal/handler/prometheus"
	userHandler "github.com/jwalitptl/carelink-api/internal/handler/user"
	"github.com/jwalitptl/carelink-api/internal/middleware"
	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	"github.com/jwalitptl/carelink-api/internal/repository/postgres"
	"github.com/jwalitptl/carelink-api/internal/router"
	adminService "github.com/jwalitptl/carelink-api/internal/service/admin"
	authService "github.com/jwalitptl/carelink-api/internal/service/auth"
	consultationService "github.com/jwalitptl/carelink-api/internal/service/consultation"
	notificationService "github.com/jwalitptl/carelink-api/internal/service/notification"
	prescriptionService "github.com/jwalitptl/carelink-api/internal/service/prescription"
	providerService "github.com/jwalitptl/carelink-api/internal/service/provider"
	internalWorker "github.com/jwalitptl/carelink-api/internal/worker"
	"github.com/jwalitptl/carelink-api/pkg/auth"
	"github.com/jwalitptl/carelink-api/pkg/event"
	"github.com/jwalitptl/carelink-api/pkg/live"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/messaging"
	"github.com/jwalitptl/carelink-api/pkg/metrics"
	"github.com/jwalitptl/carelink-api/pkg/security"
	"github.com/jwalitptl/carelink-api/pkg/storage"
	"github.com/jwalitptl/carelink-api/pkg/worker"
)

const (
	passwordCost = 10
	resetCost    = 12
)

// Repositories is the persistence layer the services run on.
type Repositories struct {
	Providers     repository.Providers
	Patients      repository.PatientRepository
	Admins        repository.AdminRepository
	Registrar     repository.AccountRegistrar
	Consultations repository.ConsultationRepository
	Notifications repository.NotificationRepository
	Outbox        repository.OutboxRepository
	Prescriptions repository.PrescriptionRepository
}

func PostgresRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Providers:     postgres.NewProviderRepositories(db),
		Patients:      postgres.NewPatientRepository(db),
		Admins:        postgres.NewAdminRepository(db),
		Registrar:     postgres.NewAccountRegistrar(db),
		Consultations: postgres.NewConsultationRepository(db),
		Notifications: postgres.NewNotificationRepository(db),
		Outbox:        postgres.NewOutboxRepository(db),
		Prescriptions: postgres.NewPrescriptionRepository(db),
	}
}

// Deps are the external collaborators. A nil Broker delivers pushes to
// this process's live registry only.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Repos    Repositories
	Blobs    storage.BlobStore
	Mailer   email.Service
	Broker   messaging.Broker
	Registry *prometheus.Registry
}

type App struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *prometheus.Registry

	Metrics       *metrics.Metrics
	Live          *live.Registry
	JWT           auth.JWTService
	Notifications *notificationService.Service
	Providers     *providerService.Service
	Consultations *consultationService.Service
	Accounts      *authService.Service
	Prescriptions *prescriptionService.Service
	Review        *adminService.Service
	Processor     *worker.OutboxProcessor
	Sweeper       *internalWorker.RetentionSweeper
}

func New(d Deps) *App {
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	m := metrics.NewMetrics(d.Registry, "carelink")
	registry := live.NewRegistry()
	jwt := auth.NewJWTService(d.Config.JWT.Secret, d.Config.JWT.Expiry)
	hasher := security.NewBcryptHasher(passwordCost)
	resetHasher := security.NewBcryptHasher(resetCost)

	var pusher notificationService.Pusher = notificationService.NewLocalPusher(registry)
	if d.Broker != nil {
		pusher = notificationService.NewBrokerPusher(d.Broker, d.Config.Redis.Channel)
	}

	events := event.NewService(d.Repos.Outbox, d.Logger)
	notifications := notificationService.NewService(d.Repos.Notifications, pusher, d.Logger, m)
	providers := providerService.NewService(d.Repos.Providers, d.Repos.Registrar, d.Blobs, hasher, notifications, d.Logger)
	consultations := consultationService.NewService(d.Repos.Consultations, d.Repos.Providers, d.Repos.Patients, notifications, events, d.Logger)

	processor := worker.NewOutboxProcessor(d.Repos.Outbox, d.Config.Outbox.ToWorkerConfig(), d.Logger, m)
	processor.Register(model.EventConsultationApproved,
		consultationService.NewPatientLinker(d.Repos.Consultations, d.Repos.Patients, d.Repos.Registrar, hasher, d.Logger))
	processor.Register(model.EventPrescriptionUploaded,
		prescriptionService.NewMailer(d.Repos.Prescriptions, d.Blobs, d.Mailer, d.Logger))

	return &App{
		cfg:           d.Config,
		logger:        d.Logger,
		registry:      d.Registry,
		Metrics:       m,
		Live:          registry,
		JWT:           jwt,
		Notifications: notifications,
		Providers:     providers,
		Consultations: consultations,
		Accounts: authService.NewService(d.Repos.Providers, d.Repos.Patients, d.Repos.Admins, d.Repos.Registrar,
			jwt, hasher, resetHasher, d.Mailer, d.Logger),
		Prescriptions: prescriptionService.NewService(d.Repos.Prescriptions, d.Repos.Providers, d.Blobs, events, d.Logger),
		Review:        adminService.NewService(providers, consultations),
		Processor:     processor,
		Sweeper:       internalWorker.NewRetentionSweeper(notifications, d.Repos.Outbox, d.Config.Retention, d.Logger, m),
	}
}

// Gatherer exposes the registry the metrics were registered on.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.registry
}

// Router builds the HTTP surface. checks feed /health/ready.
func (a *App) Router(checks map[string]healthHandler.Pinger) *router.Router {
	authMW := middleware.NewAuthMiddleware(a.JWT)
	ws := liveHandler.NewHandler(a.Live, liveHandler.Config{
		Origins:      a.cfg.CORS.AllowedOrigins,
		Tokens:       a.JWT,
		RequireToken: a.cfg.Live.RequireToken,
	}, a.Metrics.LiveConnections, a.logger)

	r := router.NewRouter(router.Handlers{
		Auth:         authHandler.NewHandler(a.Accounts),
		User:         userHandler.NewHandler(a.Accounts, a.Consultations, a.Prescriptions, authMW),
		Clinic:       clinicHandler.NewHandler(a.Providers, a.Consultations, authMW),
		Admin:        adminHandler.NewHandler(a.Accounts, a.Review, authMW),
		Notification: notificationHandler.NewHandler(a.Notifications, authMW),
		Live:         ws,
		Health:       healthHandler.NewHandler(checks),
		Metrics:      promHandler.New(a.registry, a.Metrics),
	}, router.RouterConfig{
		Mode:           a.cfg.Server.Mode,
		RateLimit:      a.cfg.RateLimit.Enabled,
		RPS:            rate.Limit(a.cfg.RateLimit.RequestsPerSecond),
		RateBurst:      a.cfg.RateLimit.Burst,
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
		RequestTimeout: requestTimeout(a.cfg.Server),
		MaxUploadSize:  a.cfg.Storage.MaxUploadSize,
	})
	r.Setup()
	return r
}

// requestTimeout leaves the write deadline a little room to send the
// timeout response itself.
func requestTimeout(s config.ServerConfig) time.Duration {
	if s.WriteTimeout > time.Second {
		return s.WriteTimeout - time.Second
	}
	return 0
}
