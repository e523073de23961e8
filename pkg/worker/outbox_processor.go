package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Lease is how long a claimed event stays invisible to other
	// processors. Defaults to one minute.
	Lease time.Duration
}

// Handler performs the side effect for one outbox event.
type Handler interface {
	Handle(ctx context.Context, event *model.OutboxEvent) error
}

type HandlerFunc func(ctx context.Context, event *model.OutboxEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event *model.OutboxEvent) error {
	return f(ctx, event)
}

type OutboxProcessor struct {
	repo     repository.OutboxRepository
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.Lease <= 0 {
		config.Lease = time.Minute
	}

	return &OutboxProcessor{
		repo:     repo,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to an event type, replacing any earlier one.
func (p *OutboxProcessor) Register(eventType string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[eventType] = h
}

func (p *OutboxProcessor) handler(eventType string) (Handler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[eventType]
	return h, ok
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch claims one batch of due events and runs their handlers. It
// returns how many events were handled successfully.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.OutboxBatchSize.Set(float64(len(events)))

	processed := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		processed++
	}
	return processed, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	h, ok := p.handler(event.EventType)
	if !ok {
		err := fmt.Errorf("no handler registered for %q", event.EventType)
		p.fail(ctx, event, err)
		return err
	}

	if err := h.Handle(ctx, event); err != nil {
		if event.RetryCount+1 >= p.config.RetryAttempts {
			p.fail(ctx, event, err)
			return err
		}
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		retryAt := p.now().Add(p.config.RetryDelay)
		if updateErr := p.repo.MarkRetry(ctx, event.ID, err.Error(), retryAt); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.WithLabelValues(event.EventType).Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}
	return nil
}

func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) {
	p.metrics.OutboxEventsFailed.WithLabelValues(event.EventType).Inc()
	if err := p.repo.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
	}
}
