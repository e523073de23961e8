package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/carelink-api/internal/model"
)

const outboxColumns = `id, event_type, payload, status, error_message, retry_count, retry_at,
	processed_at, created_at, updated_at`

type OutboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.EventType, []byte(event.Payload), event.Status, event.RetryCount,
		event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// ClaimPending pushes retry_at forward by lease on the rows it returns, so
// another processor polling at the same time skips them.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	now := r.now()
	events := []*model.OutboxEvent{}
	err := r.db.SelectContext(ctx, &events, `
		UPDATE outbox_events SET retry_at = $3, updated_at = $2
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status IN ('pending', 'retry') AND (retry_at IS NULL OR retry_at <= $2)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+outboxColumns,
		limit, now, now.Add(lease),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := r.now()
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = $2, processed_at = $3, error_message = NULL, updated_at = $3
		WHERE id = $1`,
		id, model.OutboxStatusProcessed, now,
	))
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = $2, error_message = $3, retry_count = retry_count + 1,
			retry_at = $4, updated_at = $5
		WHERE id = $1`,
		id, model.OutboxStatusRetry, errMsg, retryAt, r.now(),
	))
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = $2, error_message = $3, retry_count = retry_count + 1,
			updated_at = $4
		WHERE id = $1`,
		id, model.OutboxStatusFailed, errMsg, r.now(),
	))
}

func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = $1 AND processed_at < $2`,
		model.OutboxStatusProcessed, before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete outbox events: %w", err)
	}
	return res.RowsAffected()
}
