package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrPhoneTaken   = errors.New("phone already registered")
	ErrStaleStatus  = errors.New("status changed concurrently")
	ErrUnknownTable = errors.New("unknown provider type")
)

// All repository interfaces in one file
type (
	// ProviderRepository is backed by one provider table.
	ProviderRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Provider, error)
		GetByEmail(ctx context.Context, email string) (*model.Provider, error)
		ListByStatus(ctx context.Context, status model.ProviderStatus) ([]*model.Provider, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.ProviderStatus) error
		UpdateOTP(ctx context.Context, id uuid.UUID, otp model.OTPState) error
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	}

	PatientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		GetByPhone(ctx context.Context, phone string) (*model.Patient, error)
		SetClinicRequest(ctx context.Context, id, clinicID uuid.UUID) error
		UpdateOTP(ctx context.Context, id uuid.UUID, otp model.OTPState) error
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	}

	// AccountRegistrar creates accounts whose email must be unique across
	// every provider table and the patient table.
	AccountRegistrar interface {
		RegisterProvider(ctx context.Context, provider *model.Provider) error
		RegisterPatient(ctx context.Context, patient *model.Patient) error
	}

	AdminRepository interface {
		Create(ctx context.Context, admin *model.Admin) error
		GetByPhone(ctx context.Context, phone string) (*model.Admin, error)
	}

	ConsultationRepository interface {
		Create(ctx context.Context, consultation *model.Consultation) error
		Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
		List(ctx context.Context, filter model.ConsultationFilter) ([]*model.Consultation, error)
		// UpdateStatus writes status, note and alternative time only while the
		// stored status still equals from. It returns ErrStaleStatus otherwise.
		UpdateStatus(ctx context.Context, consultation *model.Consultation, from model.ConsultationStatus) error
		SetPatient(ctx context.Context, id, patientID uuid.UUID) error
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		GetOwned(ctx context.Context, id, receiverID uuid.UUID) (*model.Notification, error)
		List(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, int64, error)
		CountUnread(ctx context.Context, receiverID uuid.UUID, role model.Role) (int64, error)
		MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
		MarkAllRead(ctx context.Context, receiverID uuid.UUID, at time.Time) (int64, error)
		DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending leases up to limit due events so concurrent
		// processors skip them until lease expires.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, request *model.PrescriptionRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.PrescriptionRequest, error)
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PrescriptionRequest, error)
	}
)

// Providers maps each provider kind to the repository for its table.
type Providers map[model.EntityType]ProviderRepository

func (p Providers) For(t model.EntityType) (ProviderRepository, error) {
	repo, ok := p[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, t)
	}
	return repo, nil
}
