package model

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	Base
	Name           string     `json:"name" db:"name"`
	Phone          string     `json:"phone" db:"phone"`
	Email          string     `json:"email" db:"email"`
	ClinicRequest  *uuid.UUID `json:"clinicRequest" db:"clinic_request"`
	ClinicAdmitted *uuid.UUID `json:"clinicAdmitted" db:"clinic_admitted"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	OTPHash        *string    `json:"-" db:"otp_hash"`
	OTPExpiry      *time.Time `json:"-" db:"otp_expiry"`
	OTPVerified    bool       `json:"-" db:"otp_verified"`
}

// PatientSummary is the display subset joined onto consultations.
type PatientSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

func (p *Patient) Summary() *PatientSummary {
	return &PatientSummary{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone}
}

type Admin struct {
	Base
	Name         string `json:"name" db:"name"`
	Phone        string `json:"phone" db:"phone"`
	PasswordHash string `json:"-" db:"password_hash"`
}

// OTPState is the password-reset state shared by patients and providers.
type OTPState struct {
	Hash     *string
	Expiry   *time.Time
	Verified bool
}

// Credentials is what login needs from any account kind.
type Credentials struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	OTP          OTPState
}
