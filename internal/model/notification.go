package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one message to one (receiver, role) pair. Snapshot
// fields are copied at creation and never follow later changes.
type Notification struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	ReceiverID      uuid.UUID   `json:"receiverId" db:"receiver_id"`
	ReceiverRole    Role        `json:"receiverRole" db:"receiver_role"`
	EntityType      *EntityType `json:"entityType,omitempty" db:"entity_type"`
	Message         string      `json:"message" db:"message"`
	Read            bool        `json:"read" db:"read"`
	ReadAt          *time.Time  `json:"readAt,omitempty" db:"read_at"`
	ConsultationID  *uuid.UUID  `json:"consultationId,omitempty" db:"consultation_id"`
	ClinicName      *string     `json:"clinicName,omitempty" db:"clinic_name"`
	Status          *string     `json:"status,omitempty" db:"status"`
	AlternativeTime *string     `json:"alternativeTime,omitempty" db:"alternative_time"`
	AdminNote       *string     `json:"adminNote,omitempty" db:"admin_note"`
	CreatedAt       time.Time   `json:"createdAt" db:"created_at"`
}

type NotificationFilter struct {
	ReceiverID   uuid.UUID
	ReceiverRole Role
	IncludeRead  bool
	Pagination
}
