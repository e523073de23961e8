package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
)

const uniqueViolation = "23505"

type AdminRepository struct {
	BaseRepository
}

func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *AdminRepository) Create(ctx context.Context, admin *model.Admin) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO admins (id, name, phone, password_hash, created_at, updated_at)
		VALUES (:id, :name, :phone, :password_hash, :created_at, :updated_at)`, admin)
	if isUniqueViolation(err) {
		return repository.ErrPhoneTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

func (r *AdminRepository) GetByPhone(ctx context.Context, phone string) (*model.Admin, error) {
	var admin model.Admin
	err := r.db.GetContext(ctx, &admin,
		`SELECT id, name, phone, password_hash, created_at, updated_at FROM admins WHERE phone = $1`,
		phone,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &admin, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
