package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/carelink-api/internal/model"
)

const notificationColumns = `id, receiver_id, receiver_role, entity_type, message, read, read_at,
	consultation_id, clinic_name, status, alternative_time, admin_note, created_at`

type NotificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, receiver_id, receiver_role, entity_type, message, read,
			read_at, consultation_id, clinic_name, status, alternative_time, admin_note, created_at)
		VALUES (:id, :receiver_id, :receiver_role, :entity_type, :message, :read,
			:read_at, :consultation_id, :clinic_name, :status, :alternative_time, :admin_note, :created_at)`, n)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetOwned(ctx context.Context, id, receiverID uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	err := r.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND receiver_id = $2`,
		id, receiverID,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (r *NotificationRepository) List(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, int64, error) {
	page := filter.Pagination.Normalize()

	where := `receiver_id = $1 AND receiver_role = $2`
	if !filter.IncludeRead {
		where += ` AND read = FALSE`
	}

	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM notifications WHERE `+where,
		filter.ReceiverID, filter.ReceiverRole,
	); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	notifications := []*model.Notification{}
	err := r.db.SelectContext(ctx, &notifications,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		filter.ReceiverID, filter.ReceiverRole, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, receiverID uuid.UUID, role model.Role) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE receiver_id = $1 AND receiver_role = $2 AND read = FALSE`,
		receiverID, role,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead only touches an unread row, so repeating it is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE, read_at = $2 WHERE id = $1 AND read = FALSE`,
		id, at,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return res.RowsAffected()
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, receiverID uuid.UUID, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE, read_at = $2 WHERE receiver_id = $1 AND read = FALSE`,
		receiverID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return res.RowsAffected()
}
