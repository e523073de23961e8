package model

import (
	"github.com/google/uuid"
)

type ConsultationStatus string

const (
	ConsultationStatusPending  ConsultationStatus = "pending"
	ConsultationStatusApproved ConsultationStatus = "approved"
	ConsultationStatusRejected ConsultationStatus = "rejected"
)

func (s ConsultationStatus) Terminal() bool {
	return s == ConsultationStatusApproved || s == ConsultationStatusRejected
}

// ServiceType selects which provider table Consultation.ServiceID points into.
type ServiceType string

const (
	ServiceTypeClinic     ServiceType = "Clinic"
	ServiceTypeLaboratory ServiceType = "Laboratory"
)

func (t ServiceType) Valid() bool {
	return t == ServiceTypeClinic || t == ServiceTypeLaboratory
}

func (t ServiceType) EntityType() EntityType {
	if t == ServiceTypeLaboratory {
		return EntityLaboratory
	}
	return EntityClinic
}

type Consultation struct {
	Base
	FullName         string             `json:"fullName" db:"full_name"`
	PhoneNumber      string             `json:"phoneNumber" db:"phone_number"`
	ConsultationTime string             `json:"consultationTime" db:"consultation_time"`
	Purpose          string             `json:"purpose" db:"purpose"`
	ServiceID        uuid.UUID          `json:"service" db:"service_id"`
	ServiceType      ServiceType        `json:"serviceType" db:"service_type"`
	Status           ConsultationStatus `json:"status" db:"status"`
	PatientID        *uuid.UUID         `json:"patientId" db:"patient_id"`
	AdminNote        string             `json:"adminNote" db:"admin_note"`
	AlternativeTime  string             `json:"alternativeTime" db:"alternative_time"`
}

// ConsultationView is a consultation with provider and patient details
// resolved for listing.
type ConsultationView struct {
	*Consultation
	Provider *ProviderSummary `json:"serviceDetails,omitempty"`
	Patient  *PatientSummary  `json:"patientDetails,omitempty"`
}

type ConsultationFilter struct {
	Status      *ConsultationStatus
	ServiceID   *uuid.UUID
	ServiceType *ServiceType
}
