package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/metrics"
)

// Notifier is what other services use to notify a recipient.
type Notifier interface {
	Notify(ctx context.Context, in NotifyInput) (*model.Notification, error)
}

// Extra carries the consultation snapshot copied onto the notification.
// Empty values are not stored.
type Extra struct {
	ConsultationID  *uuid.UUID
	ClinicName      string
	Status          string
	AlternativeTime string
	AdminNote       string
}

type NotifyInput struct {
	RecipientID   uuid.UUID
	RecipientRole model.Role
	Message       string
	// EntityType is recorded for provider and admin recipients only.
	EntityType model.EntityType
	Extra      Extra
}

type ListInput struct {
	RecipientID   uuid.UUID
	RecipientRole model.Role
	Page          int
	Limit         int
	IncludeRead   bool
}

type ListResult struct {
	Notifications []*model.Notification
	Page          int
	Limit         int
	Total         int64
	Unread        int64
}

type Service struct {
	repo    repository.NotificationRepository
	pusher  Pusher
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.NotificationRepository, pusher Pusher, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		pusher:  pusher,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Notify persists a notification and then pushes it to the recipient's live
// session if there is one. Only a failed insert is returned as an error.
func (s *Service) Notify(ctx context.Context, in NotifyInput) (*model.Notification, error) {
	if in.RecipientID == uuid.Nil {
		return nil, apperrors.Validation("Notification recipient is required")
	}
	if !in.RecipientRole.Valid() {
		return nil, apperrors.Validation("Invalid recipient role")
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, apperrors.Validation("Notification message is required")
	}

	n := &model.Notification{
		ID:              uuid.New(),
		ReceiverID:      in.RecipientID,
		ReceiverRole:    in.RecipientRole,
		Message:         message,
		ConsultationID:  in.Extra.ConsultationID,
		ClinicName:      nonEmpty(in.Extra.ClinicName),
		Status:          nonEmpty(in.Extra.Status),
		AlternativeTime: nonEmpty(in.Extra.AlternativeTime),
		AdminNote:       nonEmpty(in.Extra.AdminNote),
		CreatedAt:       s.now(),
	}
	if in.RecipientRole != model.RolePatient && in.EntityType != "" {
		et := in.EntityType
		n.EntityType = &et
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.metrics.NotificationsCreated.WithLabelValues(strconv.Itoa(int(n.ReceiverRole))).Inc()

	s.push(ctx, n)
	return n, nil
}

func (s *Service) push(ctx context.Context, n *model.Notification) {
	result, err := s.pusher.Push(ctx, n)
	s.metrics.NotificationPushes.WithLabelValues(string(result)).Inc()
	if err != nil {
		s.logger.Warn("Failed to push notification",
			"notification_id", n.ID.String(),
			"receiver_id", n.ReceiverID.String(),
			"error", err.Error())
	}
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// MarkRead marks one of the recipient's notifications read. Marking an
// already read notification succeeds without changing it.
func (s *Service) MarkRead(ctx context.Context, notificationID, recipientID uuid.UUID) error {
	if _, err := s.repo.GetOwned(ctx, notificationID, recipientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Notification not found or unauthorized")
		}
		return fmt.Errorf("failed to get notification: %w", err)
	}

	if _, err := s.repo.MarkRead(ctx, notificationID, s.now()); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, recipientID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, in ListInput) (*ListResult, error) {
	page := model.Pagination{Page: in.Page, Limit: in.Limit}.Normalize()

	notifications, total, err := s.repo.List(ctx, model.NotificationFilter{
		ReceiverID:   in.RecipientID,
		ReceiverRole: in.RecipientRole,
		IncludeRead:  in.IncludeRead,
		Pagination:   page,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread := total
	if in.IncludeRead {
		if unread, err = s.UnreadCount(ctx, in.RecipientID, in.RecipientRole); err != nil {
			return nil, err
		}
	}

	return &ListResult{
		Notifications: notifications,
		Page:          page.Page,
		Limit:         page.Limit,
		Total:         total,
		Unread:        unread,
	}, nil
}

func (s *Service) UnreadCount(ctx context.Context, recipientID uuid.UUID, role model.Role) (int64, error) {
	n, err := s.repo.CountUnread(ctx, recipientID, role)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// PurgeOlderThan deletes notifications created before cutoff.
func (s *Service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return n, nil
}
