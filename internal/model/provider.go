package model

import (
	"time"

	"github.com/google/uuid"
)

type ProviderStatus string

const (
	ProviderStatusPending  ProviderStatus = "pending"
	ProviderStatusApproved ProviderStatus = "approved"
	ProviderStatusRejected ProviderStatus = "rejected"
)

// Provider is a clinic, pharmacy or laboratory account. The three kinds
// share one shape and are told apart by EntityType.
type Provider struct {
	Base
	EntityType       EntityType     `json:"entityType" db:"-"`
	Name             string         `json:"name" db:"name"`
	Email            string         `json:"email" db:"email"`
	Phone            string         `json:"phone" db:"phone"`
	Address          string         `json:"address" db:"address"`
	Location         string         `json:"location" db:"location"`
	Specializations  []string       `json:"specializations" db:"-"`
	NumberOfDoctors  *int           `json:"numberOfDoctors,omitempty" db:"number_of_doctors"`
	AcceptsEMI       bool           `json:"acceptsEMI" db:"accepts_emi"`
	AcceptsInsurance bool           `json:"acceptsInsurance" db:"accepts_insurance"`
	LicenseProof     *string        `json:"licenseProof,omitempty" db:"license_proof"`
	Status           ProviderStatus `json:"status" db:"status"`
	PasswordHash     string         `json:"-" db:"password_hash"`
	OTPHash          *string        `json:"-" db:"otp_hash"`
	OTPExpiry        *time.Time     `json:"-" db:"otp_expiry"`
	OTPVerified      bool           `json:"-" db:"otp_verified"`
}

// ProviderSummary is the display subset joined onto consultations.
type ProviderSummary struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Address         string    `json:"address"`
	Location        string    `json:"location"`
	Specializations []string  `json:"specializations"`
}

func (p *Provider) Summary() *ProviderSummary {
	return &ProviderSummary{
		ID:              p.ID,
		Name:            p.Name,
		Address:         p.Address,
		Location:        p.Location,
		Specializations: p.Specializations,
	}
}

// ProvidersByType groups provider listings the way the admin and public
// listings return them.
type ProvidersByType struct {
	Clinics    []*Provider `json:"clinics"`
	Pharmacies []*Provider `json:"pharmacies"`
	Labs       []*Provider `json:"labs"`
}

func (g *ProvidersByType) Set(t EntityType, providers []*Provider) {
	if providers == nil {
		providers = []*Provider{}
	}
	switch t {
	case EntityClinic:
		g.Clinics = providers
	case EntityPharmacy:
		g.Pharmacies = providers
	case EntityLaboratory:
		g.Labs = providers
	}
}
