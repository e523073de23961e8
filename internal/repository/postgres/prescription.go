package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/carelink-api/internal/model"
)

const prescriptionColumns = `id, type, doctor, date, service, user_id, username, mobile,
	provider_id, provider_model, provider_name, provider_email, file_name, file_original_name,
	file_path, file_size, file_mimetype, status, notes, created_at, updated_at`

type PrescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(db *sqlx.DB) *PrescriptionRepository {
	return &PrescriptionRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *PrescriptionRepository) Create(ctx context.Context, p *model.PrescriptionRequest) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO prescription_requests (`+prescriptionColumns+`)
		VALUES (:id, :type, :doctor, :date, :service, :user_id, :username, :mobile,
			:provider_id, :provider_model, :provider_name, :provider_email, :file_name,
			:file_original_name, :file_path, :file_size, :file_mimetype, :status, :notes,
			:created_at, :updated_at)`, p)
	if err != nil {
		return fmt.Errorf("failed to create prescription request: %w", err)
	}
	return nil
}

func (r *PrescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.PrescriptionRequest, error) {
	var p model.PrescriptionRequest
	err := r.db.GetContext(ctx, &p, `SELECT `+prescriptionColumns+` FROM prescription_requests WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PrescriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PrescriptionRequest, error) {
	requests := []*model.PrescriptionRequest{}
	err := r.db.SelectContext(ctx, &requests,
		`SELECT `+prescriptionColumns+` FROM prescription_requests WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescription requests: %w", err)
	}
	return requests, nil
}
