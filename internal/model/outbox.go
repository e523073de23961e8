package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Outbox event types.
const (
	EventConsultationApproved = "consultation.approved"
	EventPrescriptionUploaded = "prescription.uploaded"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// ConsultationApprovedPayload drives the clinic patient-linking workflow.
type ConsultationApprovedPayload struct {
	ConsultationID uuid.UUID  `json:"consultationId"`
	ClinicID       uuid.UUID  `json:"clinicId"`
	PatientID      *uuid.UUID `json:"patientId,omitempty"`
	FullName       string     `json:"fullName"`
	PhoneNumber    string     `json:"phoneNumber"`
}

// PrescriptionUploadedPayload drives the provider email.
type PrescriptionUploadedPayload struct {
	RequestID uuid.UUID `json:"requestId"`
}
