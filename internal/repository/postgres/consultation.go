package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
)

const consultationColumns = `id, full_name, phone_number, consultation_time, purpose, service_id,
	service_type, status, patient_id, admin_note, alternative_time, created_at, updated_at`

type ConsultationRepository struct {
	BaseRepository
}

func NewConsultationRepository(db *sqlx.DB) *ConsultationRepository {
	return &ConsultationRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *ConsultationRepository) Create(ctx context.Context, c *model.Consultation) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO consultations (id, full_name, phone_number, consultation_time, purpose,
			service_id, service_type, status, patient_id, admin_note, alternative_time,
			created_at, updated_at)
		VALUES (:id, :full_name, :phone_number, :consultation_time, :purpose,
			:service_id, :service_type, :status, :patient_id, :admin_note, :alternative_time,
			:created_at, :updated_at)`, c)
	if err != nil {
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	return nil
}

func (r *ConsultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	var c model.Consultation
	err := r.db.GetContext(ctx, &c, `SELECT `+consultationColumns+` FROM consultations WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ConsultationRepository) List(ctx context.Context, filter model.ConsultationFilter) ([]*model.Consultation, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.ServiceID != nil {
		add("service_id = $%d", *filter.ServiceID)
	}
	if filter.ServiceType != nil {
		add("service_type = $%d", *filter.ServiceType)
	}

	query := `SELECT ` + consultationColumns + ` FROM consultations`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	consultations := []*model.Consultation{}
	if err := r.db.SelectContext(ctx, &consultations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}

// UpdateStatus is a compare-and-set on status so a decided consultation
// cannot be decided again.
func (r *ConsultationRepository) UpdateStatus(ctx context.Context, c *model.Consultation, from model.ConsultationStatus) error {
	c.UpdatedAt = r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE consultations
		SET status = $2, admin_note = $3, alternative_time = $4, updated_at = $5
		WHERE id = $1 AND status = $6`,
		c.ID, c.Status, c.AdminNote, c.AlternativeTime, c.UpdatedAt, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update consultation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}

func (r *ConsultationRepository) SetPatient(ctx context.Context, id, patientID uuid.UUID) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE consultations SET patient_id = $2, updated_at = $3 WHERE id = $1`,
		id, patientID, r.now(),
	))
}
