package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/security"
)

const tempEmailDomain = "@temp.com"

// PatientLinker handles consultation.approved events for clinics. It marks
// the patient as having requested the clinic, creating a placeholder
// patient account when none exists for the phone number.
type PatientLinker struct {
	consultations repository.ConsultationRepository
	patients      repository.PatientRepository
	registrar     repository.AccountRegistrar
	hasher        security.PasswordHasher
	logger        *logger.Logger
	now           func() time.Time
}

func NewPatientLinker(
	consultations repository.ConsultationRepository,
	patients repository.PatientRepository,
	registrar repository.AccountRegistrar,
	hasher security.PasswordHasher,
	logger *logger.Logger,
) *PatientLinker {
	return &PatientLinker{
		consultations: consultations,
		patients:      patients,
		registrar:     registrar,
		hasher:        hasher,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Handle satisfies worker.Handler.
func (l *PatientLinker) Handle(ctx context.Context, evt *model.OutboxEvent) error {
	var payload model.ConsultationApprovedPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", evt.EventType, err)
	}
	return l.Link(ctx, payload)
}

func (l *PatientLinker) Link(ctx context.Context, p model.ConsultationApprovedPayload) error {
	patient, err := l.find(ctx, p)
	if err != nil {
		return err
	}

	if patient != nil {
		// A retry after a failed stamp finds the placeholder by phone.
		if p.PatientID == nil || *p.PatientID != patient.ID {
			if err := l.consultations.SetPatient(ctx, p.ConsultationID, patient.ID); err != nil {
				return fmt.Errorf("failed to attach patient to consultation: %w", err)
			}
		}
		if patient.ClinicRequest != nil || patient.ClinicAdmitted != nil {
			return nil
		}
		if err := l.patients.SetClinicRequest(ctx, patient.ID, p.ClinicID); err != nil {
			return fmt.Errorf("failed to set clinic request: %w", err)
		}
		l.logger.Info("Linked patient to clinic",
			"patient_id", patient.ID.String(),
			"clinic_id", p.ClinicID.String())
		return nil
	}

	return l.createPlaceholder(ctx, p)
}

func (l *PatientLinker) find(ctx context.Context, p model.ConsultationApprovedPayload) (*model.Patient, error) {
	if p.PatientID != nil {
		patient, err := l.patients.Get(ctx, *p.PatientID)
		if err == nil {
			return patient, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to get patient: %w", err)
		}
	}

	patient, err := l.patients.GetByPhone(ctx, p.PhoneNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find patient by phone: %w", err)
	}
	return patient, nil
}

func (l *PatientLinker) createPlaceholder(ctx context.Context, p model.ConsultationApprovedPayload) error {
	password, err := security.RandomToken(8)
	if err != nil {
		return err
	}
	hash, err := l.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash temporary password: %w", err)
	}

	clinicID := p.ClinicID
	now := l.now()
	patient := &model.Patient{
		Base:          model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:          p.FullName,
		Phone:         p.PhoneNumber,
		Email:         p.PhoneNumber + tempEmailDomain,
		ClinicRequest: &clinicID,
		PasswordHash:  hash,
	}

	if err := l.registrar.RegisterPatient(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) || errors.Is(err, repository.ErrPhoneTaken) {
			l.logger.Warn("Skipping placeholder patient, account already exists",
				"consultation_id", p.ConsultationID.String())
			return nil
		}
		return fmt.Errorf("failed to create placeholder patient: %w", err)
	}

	if err := l.consultations.SetPatient(ctx, p.ConsultationID, patient.ID); err != nil {
		return fmt.Errorf("failed to attach patient to consultation: %w", err)
	}

	l.logger.Info("Created placeholder patient for consultation",
		"consultation_id", p.ConsultationID.String(),
		"patient_id", patient.ID.String())
	return nil
}
