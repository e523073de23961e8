// Package admin is the review queue: pending providers and consultations
// and the decisions taken on them.
package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/service/consultation"
)

type ProviderReviewer interface {
	ListPending(ctx context.Context) (*model.ProvidersByType, error)
	SetStatus(ctx context.Context, entityType model.EntityType, id uuid.UUID, status model.ProviderStatus) (*model.Provider, error)
}

type ConsultationReviewer interface {
	List(ctx context.Context, status *model.ConsultationStatus) ([]*model.ConsultationView, error)
	Transition(ctx context.Context, in consultation.TransitionInput) (*model.Consultation, error)
}

type Service struct {
	providers     ProviderReviewer
	consultations ConsultationReviewer
}

func NewService(providers ProviderReviewer, consultations ConsultationReviewer) *Service {
	return &Service{providers: providers, consultations: consultations}
}

func (s *Service) ListPendingProviders(ctx context.Context) (*model.ProvidersByType, error) {
	return s.providers.ListPending(ctx)
}

func (s *Service) ListPendingConsultations(ctx context.Context) ([]*model.ConsultationView, error) {
	status := model.ConsultationStatusPending
	return s.consultations.List(ctx, &status)
}

// ListConsultations returns every consultation, or only those in status
// when it is set.
func (s *Service) ListConsultations(ctx context.Context, status *model.ConsultationStatus) ([]*model.ConsultationView, error) {
	return s.consultations.List(ctx, status)
}

func (s *Service) ReviewProvider(ctx context.Context, entityType model.EntityType, id uuid.UUID, status model.ProviderStatus) (*model.Provider, error) {
	return s.providers.SetStatus(ctx, entityType, id, status)
}

func (s *Service) ReviewConsultation(ctx context.Context, in consultation.TransitionInput) (*model.Consultation, error) {
	return s.consultations.Transition(ctx, in)
}
