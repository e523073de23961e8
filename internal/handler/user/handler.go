package user

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/handler"
	"github.com/jwalitptl/carelink-api/internal/middleware"
	"github.com/jwalitptl/carelink-api/internal/model"
	authService "github.com/jwalitptl/carelink-api/internal/service/auth"
	"github.com/jwalitptl/carelink-api/internal/service/consultation"
	"github.com/jwalitptl/carelink-api/internal/service/prescription"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
	"github.com/jwalitptl/carelink-api/pkg/storage"
)

type PatientRegistrar interface {
	RegisterPatient(ctx context.Context, in authService.RegisterPatientInput) (*model.Patient, error)
}

type ConsultationService interface {
	Create(ctx context.Context, in consultation.CreateInput) (*model.Consultation, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
}

type PrescriptionService interface {
	Upload(ctx context.Context, userID uuid.UUID, in prescription.UploadInput, file *storage.Upload) (*model.PrescriptionRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.PrescriptionRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.PrescriptionRequest, error)
}

// Handler serves the patient facing routes.
type Handler struct {
	accounts      PatientRegistrar
	consultations ConsultationService
	prescriptions PrescriptionService
	auth          *middleware.AuthMiddleware
}

func NewHandler(accounts PatientRegistrar, consultations ConsultationService, prescriptions PrescriptionService, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		accounts:      accounts,
		consultations: consultations,
		prescriptions: prescriptions,
		auth:          auth,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.POST("/consultations", h.auth.OptionalAuth(), h.CreateConsultation)
	r.GET("/consultations/:id", h.GetConsultation)

	patient := r.Group("", h.auth.Authenticate(), h.auth.RequireRole(model.RolePatient))
	{
		patient.POST("/prescriptions", h.UploadPrescription)
		patient.GET("/getprescriptions", h.ListPrescriptions)
		patient.GET("/prescriptions/:id", h.GetPrescription)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req authService.RegisterPatientInput
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.accounts.RegisterPatient(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, "User registered successfully", patient)
}

type createConsultationRequest struct {
	FullName         string `json:"fullName"`
	PhoneNumber      string `json:"phoneNumber"`
	ConsultationTime string `json:"consultationTime"`
	Purpose          string `json:"purpose"`
	Service          string `json:"service"`
	ServiceType      string `json:"serviceType"`
}

// CreateConsultation books a consultation. A patient token, when present,
// links the booking to that patient.
func (h *Handler) CreateConsultation(c *gin.Context) {
	var req createConsultationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	in := consultation.CreateInput{
		FullName:         req.FullName,
		PhoneNumber:      req.PhoneNumber,
		ConsultationTime: req.ConsultationTime,
		Purpose:          req.Purpose,
		ServiceType:      model.ServiceType(strings.TrimSpace(req.ServiceType)),
	}
	if s := strings.TrimSpace(req.Service); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid service ID")
			return
		}
		in.ServiceID = id
	}
	if identity, ok := middleware.GetIdentity(c); ok && identity.Role == model.RolePatient {
		id := identity.ID
		in.PatientID = &id
	}

	created, err := h.consultations.Create(c.Request.Context(), in)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, "Consultation request submitted", created)
}

func (h *Handler) GetConsultation(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id", "consultation")
	if !ok {
		return
	}

	found, err := h.consultations.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", found)
}

type uploadPrescriptionRequest struct {
	Type     string `form:"type"`
	Doctor   string `form:"doctor"`
	Date     string `form:"date"`
	Service  string `form:"service"`
	Username string `form:"username"`
	Mobile   string `form:"mobile"`
	Provider string `form:"serviceId"`
	Notes    string `form:"notes"`
}

func (h *Handler) UploadPrescription(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}

	var req uploadPrescriptionRequest
	if !handler.Bind(c, &req) {
		return
	}
	providerID, err := uuid.Parse(strings.TrimSpace(req.Provider))
	if err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid service ID")
		return
	}

	file, closer, err := handler.FormFile(c, "prescription")
	if err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid prescription upload")
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	created, err := h.prescriptions.Upload(c.Request.Context(), caller.ID, prescription.UploadInput{
		Type:       entityType(req.Type),
		Doctor:     req.Doctor,
		Date:       req.Date,
		Service:    req.Service,
		Username:   req.Username,
		Mobile:     req.Mobile,
		ProviderID: providerID,
		Notes:      req.Notes,
	}, file)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, "Prescription uploaded successfully", created)
}

func entityType(s string) model.EntityType {
	if t, ok := model.ParseEntityType(s); ok {
		return t
	}
	return model.EntityType(s)
}

func (h *Handler) ListPrescriptions(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}

	requests, err := h.prescriptions.ListForUser(c.Request.Context(), caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", requests)
}

func (h *Handler) GetPrescription(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id", "prescription")
	if !ok {
		return
	}

	found, err := h.prescriptions.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", found)
}
