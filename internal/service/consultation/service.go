package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	"github.com/jwalitptl/carelink-api/internal/service/notification"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
	"github.com/jwalitptl/carelink-api/pkg/event"
	"github.com/jwalitptl/carelink-api/pkg/logger"
)

const (
	defaultProviderName = "Healthcare Service"
	defaultTime         = "N/A"
)

type CreateInput struct {
	FullName         string
	PhoneNumber      string
	ConsultationTime string
	Purpose          string
	ServiceID        uuid.UUID
	ServiceType      model.ServiceType
	PatientID        *uuid.UUID
}

type TransitionInput struct {
	ConsultationID  uuid.UUID
	Status          model.ConsultationStatus
	AdminNote       string
	AlternativeDate string
	AlternativeTime string
}

type Service struct {
	repo      repository.ConsultationRepository
	providers repository.Providers
	patients  repository.PatientRepository
	notifier  notification.Notifier
	events    event.Emitter
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	repo repository.ConsultationRepository,
	providers repository.Providers,
	patients repository.PatientRepository,
	notifier notification.Notifier,
	events event.Emitter,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		providers: providers,
		patients:  patients,
		notifier:  notifier,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Consultation, error) {
	c := &model.Consultation{
		FullName:         strings.TrimSpace(in.FullName),
		PhoneNumber:      strings.TrimSpace(in.PhoneNumber),
		ConsultationTime: strings.TrimSpace(in.ConsultationTime),
		Purpose:          strings.TrimSpace(in.Purpose),
		ServiceID:        in.ServiceID,
		ServiceType:      in.ServiceType,
		PatientID:        in.PatientID,
		Status:           model.ConsultationStatusPending,
	}
	if c.FullName == "" || c.PhoneNumber == "" || c.ConsultationTime == "" || c.Purpose == "" || c.ServiceID == uuid.Nil {
		return nil, apperrors.Validation("All fields are required")
	}
	if !c.ServiceType.Valid() {
		return nil, apperrors.Validation("Invalid service type")
	}

	now := s.now()
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create consultation: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Consultation not found")
		}
		return nil, fmt.Errorf("failed to get consultation: %w", err)
	}
	return c, nil
}

// Transition moves a pending consultation to approved or rejected and
// notifies the patient. The status write commits even when no patient can
// be found to notify.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*model.Consultation, error) {
	note := strings.TrimSpace(in.AdminNote)
	switch in.Status {
	case model.ConsultationStatusApproved:
	case model.ConsultationStatusRejected:
		if note == "" {
			return nil, apperrors.Validation("Admin note is required when rejecting a consultation")
		}
	default:
		return nil, apperrors.Validation("Invalid status")
	}

	c, err := s.Get(ctx, in.ConsultationID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.ConsultationStatusPending {
		return nil, apperrors.Conflict(fmt.Sprintf("Consultation is already %s", c.Status))
	}

	c.Status = in.Status
	if note != "" {
		c.AdminNote = note
	}
	altDate, altTime := strings.TrimSpace(in.AlternativeDate), strings.TrimSpace(in.AlternativeTime)
	if in.Status == model.ConsultationStatusApproved && altDate != "" && altTime != "" {
		c.AlternativeTime = altDate + " " + altTime
	}

	if err := s.repo.UpdateStatus(ctx, c, model.ConsultationStatusPending); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, apperrors.Conflict("Consultation was already reviewed")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("Consultation not found")
		}
		return nil, fmt.Errorf("failed to update consultation: %w", err)
	}

	s.logger.Info("Consultation reviewed",
		"consultation_id", c.ID.String(),
		"status", string(c.Status))

	recipient := s.resolvePatient(ctx, c)
	if recipient != nil {
		s.notifyPatient(ctx, c, recipient.ID)
	} else {
		s.logger.Warn("No patient to notify for consultation", "consultation_id", c.ID.String())
	}

	if c.Status == model.ConsultationStatusApproved && c.ServiceType == model.ServiceTypeClinic {
		payload := model.ConsultationApprovedPayload{
			ConsultationID: c.ID,
			ClinicID:       c.ServiceID,
			PatientID:      c.PatientID,
			FullName:       c.FullName,
			PhoneNumber:    c.PhoneNumber,
		}
		if err := s.events.Emit(ctx, model.EventConsultationApproved, payload); err != nil {
			s.logger.Error(err, "Failed to queue patient linking", "consultation_id", c.ID.String())
		}
	}

	return c, nil
}

// resolvePatient finds the patient by id, falling back to the phone
// number the request was made with.
func (s *Service) resolvePatient(ctx context.Context, c *model.Consultation) *model.Patient {
	if c.PatientID != nil {
		p, err := s.patients.Get(ctx, *c.PatientID)
		if err == nil {
			return p
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error(err, "Failed to load patient", "patient_id", c.PatientID.String())
			return nil
		}
	}

	p, err := s.patients.GetByPhone(ctx, c.PhoneNumber)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error(err, "Failed to look up patient by phone", "consultation_id", c.ID.String())
		}
		return nil
	}
	return p
}

func (s *Service) providerName(ctx context.Context, c *model.Consultation) string {
	repo, err := s.providers.For(c.ServiceType.EntityType())
	if err != nil {
		return defaultProviderName
	}
	p, err := repo.Get(ctx, c.ServiceID)
	if err != nil || strings.TrimSpace(p.Name) == "" {
		return defaultProviderName
	}
	return p.Name
}

func (s *Service) notifyPatient(ctx context.Context, c *model.Consultation, patientID uuid.UUID) {
	name := s.providerName(ctx, c)
	when := c.ConsultationTime
	if strings.TrimSpace(when) == "" {
		when = defaultTime
	}

	_, err := s.notifier.Notify(ctx, notification.NotifyInput{
		RecipientID:   patientID,
		RecipientRole: model.RolePatient,
		Message:       reviewMessage(c, name, when),
		EntityType:    c.ServiceType.EntityType(),
		Extra: notification.Extra{
			ConsultationID:  &c.ID,
			ClinicName:      name,
			Status:          string(c.Status),
			AlternativeTime: c.AlternativeTime,
			AdminNote:       c.AdminNote,
		},
	})
	if err != nil {
		s.logger.Error(err, "Failed to notify patient", "consultation_id", c.ID.String())
	}
}

func reviewMessage(c *model.Consultation, name, when string) string {
	if c.Status == model.ConsultationStatusRejected {
		return fmt.Sprintf("Your consultation request for %s on %s has been REJECTED. Reason: %s", name, when, c.AdminNote)
	}

	var msg string
	if c.AlternativeTime != "" {
		msg = fmt.Sprintf("Your consultation request for %s has been APPROVED with alternative time: %s.", name, c.AlternativeTime)
	} else {
		msg = fmt.Sprintf("Your consultation request for %s on %s has been APPROVED.", name, when)
	}
	if c.AdminNote != "" {
		msg += " Admin note: " + c.AdminNote
	}
	return msg
}

// List returns consultations newest first with provider and patient
// details attached.
func (s *Service) List(ctx context.Context, status *model.ConsultationStatus) ([]*model.ConsultationView, error) {
	if status != nil {
		switch *status {
		case model.ConsultationStatusPending, model.ConsultationStatusApproved, model.ConsultationStatusRejected:
		default:
			return nil, apperrors.Validation("Invalid status filter")
		}
	}
	return s.list(ctx, model.ConsultationFilter{Status: status})
}

// ListForProvider returns the approved consultations booked with a clinic.
func (s *Service) ListForProvider(ctx context.Context, clinicID uuid.UUID) ([]*model.ConsultationView, error) {
	status := model.ConsultationStatusApproved
	serviceType := model.ServiceTypeClinic
	return s.list(ctx, model.ConsultationFilter{
		Status:      &status,
		ServiceID:   &clinicID,
		ServiceType: &serviceType,
	})
}

func (s *Service) list(ctx context.Context, filter model.ConsultationFilter) ([]*model.ConsultationView, error) {
	consultations, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}

	providers := map[uuid.UUID]*model.ProviderSummary{}
	patients := map[uuid.UUID]*model.PatientSummary{}

	views := make([]*model.ConsultationView, 0, len(consultations))
	for _, c := range consultations {
		view := &model.ConsultationView{Consultation: c}

		summary, seen := providers[c.ServiceID]
		if !seen {
			summary = s.providerSummary(ctx, c)
			providers[c.ServiceID] = summary
		}
		view.Provider = summary

		if c.PatientID != nil {
			ps, seen := patients[*c.PatientID]
			if !seen {
				if p, err := s.patients.Get(ctx, *c.PatientID); err == nil {
					ps = p.Summary()
				}
				patients[*c.PatientID] = ps
			}
			view.Patient = ps
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) providerSummary(ctx context.Context, c *model.Consultation) *model.ProviderSummary {
	repo, err := s.providers.For(c.ServiceType.EntityType())
	if err != nil {
		return nil
	}
	p, err := repo.Get(ctx, c.ServiceID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Failed to load provider for consultation",
				"consultation_id", c.ID.String(),
				"error", err.Error())
		}
		return nil
	}
	return p.Summary()
}

// PatientDetails returns a patient that has requested or been admitted to
// the clinic.
func (s *Service) PatientDetails(ctx context.Context, clinicID, patientID uuid.UUID) (*model.Patient, error) {
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Patient not found")
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	linked := (p.ClinicAdmitted != nil && *p.ClinicAdmitted == clinicID) ||
		(p.ClinicRequest != nil && *p.ClinicRequest == clinicID)
	if !linked {
		return nil, apperrors.NotFound("Patient not found")
	}
	return p, nil
}
