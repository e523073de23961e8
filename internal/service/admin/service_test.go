package admin

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository/memory"
	"github.com/jwalitptl/carelink-api/internal/service/consultation"
	"github.com/jwalitptl/carelink-api/internal/service/notification"
	"github.com/jwalitptl/carelink-api/internal/service/provider"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
	"github.com/jwalitptl/carelink-api/pkg/event"
	"github.com/jwalitptl/carelink-api/pkg/live"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/metrics"
	"github.com/jwalitptl/carelink-api/pkg/security"
	"github.com/jwalitptl/carelink-api/pkg/storage"
)

type fixture struct {
	store         *memory.Store
	providers     *provider.Service
	consultations *consultation.Service
	svc           *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	notifier := notification.NewService(store.Notifications(), notification.NewLocalPusher(live.NewRegistry()), logger.Nop(), metrics.New("test"))
	providers := provider.NewService(store.Providers(), store.Registrar(), blobs, security.NewBcryptHasher(4), notifier, logger.Nop())
	consultations := consultation.NewService(store.Consultations(), store.Providers(), store.Patients(), notifier,
		event.NewService(store.Outbox(), logger.Nop()), logger.Nop())

	return &fixture{
		store:         store,
		providers:     providers,
		consultations: consultations,
		svc:           NewService(providers, consultations),
	}
}

func TestApprovingClinicNotifiesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctors := 2

	clinic, err := f.providers.Register(ctx, provider.RegisterInput{
		EntityType: model.EntityClinic, Name: "Sunrise", Email: "sunrise@example.com", Phone: "9876543210",
		Address: "1 Main St", Location: "Pune", Password: "Secret#123",
		Specializations: []string{"general"}, NumberOfDoctors: &doctors,
	}, nil)
	require.NoError(t, err)

	pending, err := f.svc.ListPendingProviders(ctx)
	require.NoError(t, err)
	require.Len(t, pending.Clinics, 1)
	assert.Equal(t, model.EntityClinic, pending.Clinics[0].EntityType)

	_, err = f.svc.ReviewProvider(ctx, model.EntityClinic, clinic.ID, model.ProviderStatusApproved)
	require.NoError(t, err)

	notes := f.store.AllNotifications()
	require.Len(t, notes, 1)
	assert.Equal(t, clinic.ID, notes[0].ReceiverID)
	assert.Equal(t, model.RoleProvider, notes[0].ReceiverRole)
	assert.Equal(t, "Your clinic has been approved by the admin.", notes[0].Message)

	pending, err = f.svc.ListPendingProviders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending.Clinics)
}

func TestReviewConsultationPassesErrorsThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReviewConsultation(ctx, consultation.TransitionInput{ConsultationID: uuid.New(), Status: model.ConsultationStatusApproved})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	c, err := f.consultations.Create(ctx, consultation.CreateInput{
		FullName: "Asha", PhoneNumber: "9876543210", ConsultationTime: "Mon 10am", Purpose: "fever",
		ServiceID: uuid.New(), ServiceType: model.ServiceTypeClinic,
	})
	require.NoError(t, err)

	_, err = f.svc.ReviewConsultation(ctx, consultation.TransitionInput{ConsultationID: c.ID, Status: model.ConsultationStatusRejected})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	queue, err := f.svc.ListPendingConsultations(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)

	_, err = f.svc.ReviewConsultation(ctx, consultation.TransitionInput{ConsultationID: c.ID, Status: model.ConsultationStatusRejected, AdminNote: "closed"})
	require.NoError(t, err)

	queue, err = f.svc.ListPendingConsultations(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	all, err := f.svc.ListConsultations(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
