package model

import (
	"time"

	"github.com/google/uuid"
)

type PrescriptionStatus string

const (
	PrescriptionStatusPending   PrescriptionStatus = "pending"
	PrescriptionStatusAccepted  PrescriptionStatus = "accepted"
	PrescriptionStatusRejected  PrescriptionStatus = "rejected"
	PrescriptionStatusCompleted PrescriptionStatus = "completed"
)

// PrescriptionFile describes an uploaded prescription held in the blob store.
type PrescriptionFile struct {
	Filename     string `json:"filename" db:"file_name"`
	OriginalName string `json:"originalName" db:"file_original_name"`
	Path         string `json:"path" db:"file_path"`
	Size         int64  `json:"size" db:"file_size"`
	MimeType     string `json:"mimetype" db:"file_mimetype"`
}

type PrescriptionRequest struct {
	Base
	Type          EntityType         `json:"type" db:"type"`
	Doctor        string             `json:"doctor" db:"doctor"`
	Date          time.Time          `json:"date" db:"date"`
	Service       string             `json:"service" db:"service"`
	UserID        uuid.UUID          `json:"userId" db:"user_id"`
	Username      string             `json:"username" db:"username"`
	Mobile        string             `json:"mobile" db:"mobile"`
	ProviderID    uuid.UUID          `json:"providerId" db:"provider_id"`
	ProviderModel string             `json:"providerModel" db:"provider_model"`
	ProviderName  string             `json:"providerName" db:"provider_name"`
	ProviderEmail string             `json:"providerEmail" db:"provider_email"`
	PrescriptionFile `json:"prescriptionFile"`
	Status        PrescriptionStatus `json:"status" db:"status"`
	Notes         string             `json:"notes" db:"notes"`
}
