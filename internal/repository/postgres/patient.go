package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/carelink-api/internal/model"
)

const patientColumns = `id, name, phone, email, password_hash, clinic_request, clinic_admitted,
	otp_hash, otp_expiry, otp_verified, created_at, updated_at`

type PatientRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *PatientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PatientRepository) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	return r.getOne(ctx, "lower(email) = lower($1)", email)
}

func (r *PatientRepository) GetByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	return r.getOne(ctx, "phone = $1", phone)
}

func (r *PatientRepository) getOne(ctx context.Context, where string, arg interface{}) (*model.Patient, error) {
	var p model.Patient
	query := `SELECT ` + patientColumns + ` FROM patients WHERE ` + where
	if err := r.db.GetContext(ctx, &p, query, arg); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PatientRepository) SetClinicRequest(ctx context.Context, id, clinicID uuid.UUID) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE patients SET clinic_request = $2, updated_at = $3 WHERE id = $1`,
		id, clinicID, r.now(),
	))
}

func (r *PatientRepository) UpdateOTP(ctx context.Context, id uuid.UUID, otp model.OTPState) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE patients SET otp_hash = $2, otp_expiry = $3, otp_verified = $4, updated_at = $5 WHERE id = $1`,
		id, otp.Hash, otp.Expiry, otp.Verified, r.now(),
	))
}

func (r *PatientRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE patients SET password_hash = $2, otp_hash = NULL, otp_expiry = NULL,
		otp_verified = FALSE, updated_at = $3 WHERE id = $1`,
		id, passwordHash, r.now(),
	))
}

func insertPatient(ctx context.Context, tx *sqlx.Tx, p *model.Patient) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO patients (id, name, phone, email, password_hash, clinic_request,
			clinic_admitted, otp_verified, created_at, updated_at)
		VALUES (:id, :name, :phone, :email, :password_hash, :clinic_request,
			:clinic_admitted, :otp_verified, :created_at, :updated_at)`, p)
	if err != nil {
		return fmt.Errorf("failed to insert patient: %w", err)
	}
	return nil
}
