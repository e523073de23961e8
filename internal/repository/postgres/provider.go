package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
)

// providerTables maps each provider kind to its table. Table names are
// interpolated into SQL so only these values are ever used.
var providerTables = map[model.EntityType]string{
	model.EntityClinic:     "clinics",
	model.EntityPharmacy:   "pharmacies",
	model.EntityLaboratory: "laboratories",
}

func providerTableNames() []string {
	names := make([]string, 0, len(model.EntityTypes))
	for _, t := range model.EntityTypes {
		names = append(names, providerTables[t])
	}
	return names
}

const providerColumns = `id, name, email, phone, address, location, specializations,
	number_of_doctors, accepts_emi, accepts_insurance, license_proof, status,
	password_hash, otp_hash, otp_expiry, otp_verified, created_at, updated_at`

type providerRow struct {
	model.Provider
	Specializations pq.StringArray `db:"specializations"`
}

func (r *providerRow) toModel(t model.EntityType) *model.Provider {
	p := r.Provider
	p.EntityType = t
	p.Specializations = []string(r.Specializations)
	if p.Specializations == nil {
		p.Specializations = []string{}
	}
	return &p
}

type ProviderRepository struct {
	BaseRepository
	entityType model.EntityType
	table      string
}

// NewProviderRepository returns the repository for one provider kind.
func NewProviderRepository(db *sqlx.DB, t model.EntityType) (*ProviderRepository, error) {
	table, ok := providerTables[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownTable, t)
	}
	return &ProviderRepository{
		BaseRepository: NewBaseRepository(db),
		entityType:     t,
		table:          table,
	}, nil
}

// NewProviderRepositories builds the lookup table covering every provider kind.
func NewProviderRepositories(db *sqlx.DB) repository.Providers {
	providers := make(repository.Providers, len(providerTables))
	for t := range providerTables {
		repo, _ := NewProviderRepository(db, t)
		providers[t] = repo
	}
	return providers
}

func (r *ProviderRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *ProviderRepository) GetByEmail(ctx context.Context, email string) (*model.Provider, error) {
	return r.getOne(ctx, "lower(email) = lower($1)", email)
}

func (r *ProviderRepository) getOne(ctx context.Context, where string, arg interface{}) (*model.Provider, error) {
	var row providerRow
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, providerColumns, r.table, where)
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		return nil, notFound(err)
	}
	return row.toModel(r.entityType), nil
}

func (r *ProviderRepository) ListByStatus(ctx context.Context, status model.ProviderStatus) ([]*model.Provider, error) {
	var rows []providerRow
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = $1 ORDER BY created_at DESC`, providerColumns, r.table)
	if err := r.db.SelectContext(ctx, &rows, query, status); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table, err)
	}

	providers := make([]*model.Provider, 0, len(rows))
	for i := range rows {
		providers = append(providers, rows[i].toModel(r.entityType))
	}
	return providers, nil
}

func (r *ProviderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ProviderStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = $3 WHERE id = $1`, r.table)
	return expectOne(r.db.ExecContext(ctx, query, id, status, r.now()))
}

func (r *ProviderRepository) UpdateOTP(ctx context.Context, id uuid.UUID, otp model.OTPState) error {
	query := fmt.Sprintf(`UPDATE %s SET otp_hash = $2, otp_expiry = $3, otp_verified = $4, updated_at = $5 WHERE id = $1`, r.table)
	return expectOne(r.db.ExecContext(ctx, query, id, otp.Hash, otp.Expiry, otp.Verified, r.now()))
}

func (r *ProviderRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET password_hash = $2, otp_hash = NULL, otp_expiry = NULL,
		otp_verified = FALSE, updated_at = $3 WHERE id = $1`, r.table)
	return expectOne(r.db.ExecContext(ctx, query, id, passwordHash, r.now()))
}

func insertProvider(ctx context.Context, tx *sqlx.Tx, p *model.Provider) error {
	table, ok := providerTables[p.EntityType]
	if !ok {
		return fmt.Errorf("%w: %q", repository.ErrUnknownTable, p.EntityType)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, name, email, phone, address, location, specializations,
		number_of_doctors, accepts_emi, accepts_insurance, license_proof, status, password_hash,
		otp_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, table)

	_, err := tx.ExecContext(ctx, query,
		p.ID, p.Name, p.Email, p.Phone, p.Address, p.Location, pq.StringArray(p.Specializations),
		p.NumberOfDoctors, p.AcceptsEMI, p.AcceptsInsurance, p.LicenseProof, p.Status, p.PasswordHash,
		p.OTPVerified, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}
