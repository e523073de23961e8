package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	"github.com/jwalitptl/carelink-api/pkg/logger"
)

// Service writes side effects to the outbox for the outbox processor.
type Service struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(outboxRepo repository.OutboxRepository, logger *logger.Logger) *Service {
	return &Service{
		outboxRepo: outboxRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateEvent(ctx context.Context, event *model.OutboxEvent) error {
	return s.outboxRepo.Create(ctx, event)
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	now := s.now()
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    model.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateEvent(ctx, event); err != nil {
		s.logger.Error(err, "Failed to record outbox event", "event_type", eventType)
		return fmt.Errorf("failed to emit %s: %w", eventType, err)
	}

	s.logger.Debug("Recorded outbox event", "event_type", eventType, "event_id", event.ID.String())
	return nil
}
