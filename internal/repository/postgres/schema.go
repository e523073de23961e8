package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const providerTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
	id                UUID PRIMARY KEY,
	name              TEXT NOT NULL,
	email             TEXT NOT NULL UNIQUE,
	phone             TEXT NOT NULL,
	address           TEXT NOT NULL,
	location          TEXT NOT NULL,
	specializations   TEXT[] NOT NULL DEFAULT '{}',
	number_of_doctors INTEGER,
	accepts_emi       BOOLEAN NOT NULL DEFAULT FALSE,
	accepts_insurance BOOLEAN NOT NULL DEFAULT FALSE,
	license_proof     TEXT,
	status            TEXT NOT NULL DEFAULT 'pending',
	password_hash     TEXT NOT NULL,
	otp_hash          TEXT,
	otp_expiry        TIMESTAMPTZ,
	otp_verified      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS %s_status_idx ON %s (status);`

var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		phone           TEXT NOT NULL UNIQUE,
		email           TEXT NOT NULL UNIQUE,
		password_hash   TEXT NOT NULL,
		clinic_request  UUID,
		clinic_admitted UUID,
		otp_hash        TEXT,
		otp_expiry      TIMESTAMPTZ,
		otp_verified    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		phone         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS consultations (
		id                UUID PRIMARY KEY,
		full_name         TEXT NOT NULL,
		phone_number      TEXT NOT NULL,
		consultation_time TEXT NOT NULL,
		purpose           TEXT NOT NULL,
		service_id        UUID NOT NULL,
		service_type      TEXT NOT NULL CHECK (service_type IN ('Clinic', 'Laboratory')),
		status            TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		patient_id        UUID,
		admin_note        TEXT NOT NULL DEFAULT '',
		alternative_time  TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS consultations_status_idx ON consultations (status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS consultations_service_idx ON consultations (service_id, service_type)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id               UUID PRIMARY KEY,
		receiver_id      UUID NOT NULL,
		receiver_role    INTEGER NOT NULL CHECK (receiver_role IN (300, 400, 500)),
		entity_type      TEXT CHECK (entity_type IN ('clinic', 'pharmacy', 'lab')),
		message          TEXT NOT NULL,
		read             BOOLEAN NOT NULL DEFAULT FALSE,
		read_at          TIMESTAMPTZ,
		consultation_id  UUID,
		clinic_name      TEXT,
		status           TEXT,
		alternative_time TEXT,
		admin_note       TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_receiver_idx ON notifications (receiver_id, receiver_role, read, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS notifications_created_idx ON notifications (created_at)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id            UUID PRIMARY KEY,
		event_type    TEXT NOT NULL,
		payload       JSONB NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		retry_count   INTEGER NOT NULL DEFAULT 0,
		retry_at      TIMESTAMPTZ,
		processed_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_events_due_idx ON outbox_events (status, retry_at)`,
	`CREATE TABLE IF NOT EXISTS prescription_requests (
		id                 UUID PRIMARY KEY,
		type               TEXT NOT NULL CHECK (type IN ('pharmacy', 'lab')),
		doctor             TEXT NOT NULL DEFAULT '',
		date               TIMESTAMPTZ NOT NULL,
		service            TEXT NOT NULL DEFAULT '',
		user_id            UUID NOT NULL,
		username           TEXT NOT NULL DEFAULT '',
		mobile             TEXT NOT NULL DEFAULT '',
		provider_id        UUID NOT NULL,
		provider_model     TEXT NOT NULL,
		provider_name      TEXT NOT NULL,
		provider_email     TEXT NOT NULL,
		file_name          TEXT NOT NULL,
		file_original_name TEXT NOT NULL,
		file_path          TEXT NOT NULL,
		file_size          BIGINT NOT NULL,
		file_mimetype      TEXT NOT NULL,
		status             TEXT NOT NULL DEFAULT 'pending',
		notes              TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS prescription_requests_user_idx ON prescription_requests (user_id, created_at DESC)`,
}

// Migrate creates every table the service needs. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements := make([]string, 0, len(schema)+len(providerTables))
	for _, table := range providerTableNames() {
		statements = append(statements, fmt.Sprintf(providerTableDDL, table, table, table))
	}
	statements = append(statements, schema...)

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
