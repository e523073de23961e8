package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository"
)

// emailInUse checks every account table. Callers hold the advisory lock for
// the address so two registrations for it cannot interleave.
const emailInUse = `SELECT EXISTS (
	SELECT 1 FROM clinics WHERE lower(email) = lower($1)
	UNION ALL SELECT 1 FROM pharmacies WHERE lower(email) = lower($1)
	UNION ALL SELECT 1 FROM laboratories WHERE lower(email) = lower($1)
	UNION ALL SELECT 1 FROM patients WHERE lower(email) = lower($1)
)`

const lockEmail = `SELECT pg_advisory_xact_lock(hashtext(lower($1)))`

// AccountRegistrar creates patient and provider accounts with email
// uniqueness enforced across all of them.
type AccountRegistrar struct {
	BaseRepository
}

func NewAccountRegistrar(db *sqlx.DB) *AccountRegistrar {
	return &AccountRegistrar{BaseRepository: NewBaseRepository(db)}
}

func (r *AccountRegistrar) RegisterProvider(ctx context.Context, provider *model.Provider) error {
	return r.register(ctx, provider.Email, func(tx *sqlx.Tx) error {
		return insertProvider(ctx, tx, provider)
	})
}

func (r *AccountRegistrar) RegisterPatient(ctx context.Context, patient *model.Patient) error {
	return r.register(ctx, patient.Email, func(tx *sqlx.Tx) error {
		var phoneTaken bool
		if err := tx.GetContext(ctx, &phoneTaken,
			`SELECT EXISTS (SELECT 1 FROM patients WHERE phone = $1)`, patient.Phone); err != nil {
			return fmt.Errorf("failed to check phone: %w", err)
		}
		if phoneTaken {
			return repository.ErrPhoneTaken
		}
		return insertPatient(ctx, tx, patient)
	})
}

func (r *AccountRegistrar) register(ctx context.Context, email string, insert func(*sqlx.Tx) error) error {
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, lockEmail, email); err != nil {
			return fmt.Errorf("failed to lock email: %w", err)
		}

		var taken bool
		if err := tx.GetContext(ctx, &taken, emailInUse, email); err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return repository.ErrEmailTaken
		}
		return insert(tx)
	})
	if isUniqueViolation(err) {
		return repository.ErrEmailTaken
	}
	return err
}
