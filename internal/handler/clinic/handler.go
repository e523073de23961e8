package clinic

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/handler"
	"github.com/jwalitptl/carelink-api/internal/middleware"
	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/service/provider"
	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
	"github.com/jwalitptl/carelink-api/pkg/storage"
)

type ProviderService interface {
	Register(ctx context.Context, in provider.RegisterInput, license *storage.Upload) (*model.Provider, error)
	ListApproved(ctx context.Context) (*model.ProvidersByType, error)
}

type ConsultationService interface {
	ListForProvider(ctx context.Context, clinicID uuid.UUID) ([]*model.ConsultationView, error)
	PatientDetails(ctx context.Context, clinicID, patientID uuid.UUID) (*model.Patient, error)
}

// Handler serves provider registration and the clinic dashboard routes.
type Handler struct {
	providers     ProviderService
	consultations ConsultationService
	auth          *middleware.AuthMiddleware
}

func NewHandler(providers ProviderService, consultations ConsultationService, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		providers:     providers,
		consultations: consultations,
		auth:          auth,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.GET("/approved-clinics", h.ListApproved)

	dashboard := r.Group("", h.auth.Authenticate(), h.auth.RequireRole(model.RoleProvider))
	{
		dashboard.GET("/my-patients", h.MyPatients)
		dashboard.GET("/patient-details/:patientId", h.PatientDetails)
	}
}

type registerRequest struct {
	EntityType       string   `form:"entityType"`
	Name             string   `form:"name" binding:"required"`
	Email            string   `form:"email" binding:"required,email"`
	Phone            string   `form:"phone" binding:"required"`
	Address          string   `form:"address" binding:"required"`
	Location         string   `form:"location" binding:"required"`
	Password         string   `form:"password" binding:"required"`
	Specializations  []string `form:"specializations"`
	NumberOfDoctors  *int     `form:"numberOfDoctors"`
	AcceptsEMI       string   `form:"acceptsEMI" binding:"required,yesno"`
	AcceptsInsurance string   `form:"acceptsInsurance" binding:"required,yesno"`
}

// Register signs up a clinic, pharmacy or lab. The account stays pending
// until an admin approves it.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !handler.Bind(c, &req) {
		return
	}

	entityType := model.EntityClinic
	if req.EntityType != "" {
		t, ok := model.ParseEntityType(req.EntityType)
		if !ok {
			httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid entity type")
			return
		}
		entityType = t
	}

	license, closer, err := handler.FormFile(c, "licenseProof")
	if err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid license proof upload")
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	p, err := h.providers.Register(c.Request.Context(), provider.RegisterInput{
		EntityType:       entityType,
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		Location:         req.Location,
		Password:         req.Password,
		Specializations:  req.Specializations,
		NumberOfDoctors:  req.NumberOfDoctors,
		AcceptsEMI:       strings.EqualFold(req.AcceptsEMI, "yes"),
		AcceptsInsurance: strings.EqualFold(req.AcceptsInsurance, "yes"),
	}, license)
	if err != nil {
		// Duplicate email is reported as a bad request on this endpoint.
		if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.ErrConflict {
			httputil.RespondWithStatus(c, http.StatusBadRequest, appErr.Message)
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, entityType.Title()+" registered successfully. Awaiting admin approval.", p)
}

func (h *Handler) ListApproved(c *gin.Context) {
	providers, err := h.providers.ListApproved(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", providers)
}

// MyPatients lists the approved consultations booked with the caller.
func (h *Handler) MyPatients(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}

	views, err := h.consultations.ListForProvider(c.Request.Context(), caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", views)
}

func (h *Handler) PatientDetails(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	patientID, ok := handler.ParamUUID(c, "patientId", "patient")
	if !ok {
		return
	}

	patient, err := h.consultations.PatientDetails(c.Request.Context(), caller.ID, patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", patient)
}
