package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/carelink-api/config"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/metrics"
)

type NotificationPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type ProcessedOutboxPurger interface {
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// SweepResult counts what one pass removed.
type SweepResult struct {
	Notifications int64
	OutboxEvents  int64
}

// RetentionSweeper deletes expired notifications and processed outbox rows
// on a cron schedule.
type RetentionSweeper struct {
	notifications NotificationPurger
	outbox        ProcessedOutboxPurger
	config        config.RetentionConfig
	logger        *logger.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewRetentionSweeper(
	notifications NotificationPurger,
	outbox ProcessedOutboxPurger,
	cfg config.RetentionConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *RetentionSweeper {
	return &RetentionSweeper{
		notifications: notifications,
		outbox:        outbox,
		config:        cfg,
		logger:        logger,
		metrics:       metrics,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the sweep and blocks until ctx is done. A running pass
// is allowed to finish before it returns.
func (w *RetentionSweeper) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(w.config.Schedule, func() {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error(err, "Retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", w.config.Schedule, err)
	}

	c.Start()
	w.logger.Info("Retention sweeper started", "schedule", w.config.Schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *RetentionSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := w.now()

	if w.config.NotificationDays > 0 {
		n, err := w.notifications.PurgeOlderThan(ctx, now.AddDate(0, 0, -w.config.NotificationDays))
		if err != nil {
			return res, fmt.Errorf("failed to sweep notifications: %w", err)
		}
		res.Notifications = n
		w.metrics.RecordsSwept.WithLabelValues("notifications").Add(float64(n))
	}

	if w.config.ProcessedOutboxDays > 0 {
		n, err := w.outbox.DeleteProcessedBefore(ctx, now.AddDate(0, 0, -w.config.ProcessedOutboxDays))
		if err != nil {
			return res, fmt.Errorf("failed to sweep outbox events: %w", err)
		}
		res.OutboxEvents = n
		w.metrics.RecordsSwept.WithLabelValues("outbox_events").Add(float64(n))
	}

	w.logger.Info("Retention sweep finished",
		"notifications", res.Notifications,
		"outbox_events", res.OutboxEvents)
	return res, nil
}
