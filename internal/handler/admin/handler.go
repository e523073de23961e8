package admin

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/handler"
	"github.com/jwalitptl/carelink-api/internal/middleware"
	"github.com/jwalitptl/carelink-api/internal/model"
	authService "github.com/jwalitptl/carelink-api/internal/service/auth"
	"github.com/jwalitptl/carelink-api/internal/service/consultation"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
)

type AccountService interface {
	RegisterAdmin(ctx context.Context, in authService.RegisterAdminInput) (*model.Admin, error)
	LoginAdmin(ctx context.Context, phone, password string) (*authService.Session, error)
}

type ReviewService interface {
	ListPendingProviders(ctx context.Context) (*model.ProvidersByType, error)
	ListPendingConsultations(ctx context.Context) ([]*model.ConsultationView, error)
	ListConsultations(ctx context.Context, status *model.ConsultationStatus) ([]*model.ConsultationView, error)
	ReviewProvider(ctx context.Context, entityType model.EntityType, id uuid.UUID, status model.ProviderStatus) (*model.Provider, error)
	ReviewConsultation(ctx context.Context, in consultation.TransitionInput) (*model.Consultation, error)
}

type Handler struct {
	accounts AccountService
	review   ReviewService
	auth     *middleware.AuthMiddleware
}

func NewHandler(accounts AccountService, review ReviewService, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{accounts: accounts, review: review, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/registeradmin", h.Register)
	r.POST("/loginadmin", h.Login)

	review := r.Group("", h.auth.Authenticate(), h.auth.RequireRole(model.RoleAdmin))
	{
		review.GET("/pending-clinics", h.PendingProviders)
		review.PATCH("/verify/:type/:id", h.VerifyProvider)
		review.GET("/pending-clinic-requests", h.PendingConsultations)
		review.GET("/consultations", h.ListConsultations)
		review.PATCH("/update-status", h.UpdateConsultationStatus)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req authService.RegisterAdminInput
	if !handler.BindJSON(c, &req) {
		return
	}

	admin, err := h.accounts.RegisterAdmin(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, "Admin registered successfully", admin)
}

type loginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.accounts.LoginAdmin(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "Login successful", session)
}

func (h *Handler) PendingProviders(c *gin.Context) {
	grouped, err := h.review.ListPendingProviders(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", grouped)
}

type verifyRequest struct {
	Status model.ProviderStatus `json:"status" binding:"required"`
}

func (h *Handler) VerifyProvider(c *gin.Context) {
	entityType, ok := model.ParseEntityType(c.Param("type"))
	if !ok {
		httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid entity type")
		return
	}
	id, ok := handler.ParamUUID(c, "id", entityType.Title())
	if !ok {
		return
	}
	var req verifyRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.review.ReviewProvider(c.Request.Context(), entityType, id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, fmt.Sprintf("%s %s successfully", entityType.Title(), req.Status), p)
}

func (h *Handler) PendingConsultations(c *gin.Context) {
	views, err := h.review.ListPendingConsultations(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", views)
}

// ListConsultations filters by the optional status query parameter.
func (h *Handler) ListConsultations(c *gin.Context) {
	var status *model.ConsultationStatus
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		st := model.ConsultationStatus(strings.ToLower(s))
		status = &st
	}

	views, err := h.review.ListConsultations(c.Request.Context(), status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", views)
}

type updateStatusRequest struct {
	ConsultationID  string                   `json:"consultationId" binding:"required"`
	Status          model.ConsultationStatus `json:"status" binding:"required"`
	AdminNote       string                   `json:"adminNote"`
	AlternativeDate string                   `json:"alternativeDate"`
	AlternativeTime string                   `json:"alternativeTime"`
}

func (h *Handler) UpdateConsultationStatus(c *gin.Context) {
	var req updateStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(req.ConsultationID))
	if err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid consultation ID")
		return
	}

	updated, err := h.review.ReviewConsultation(c.Request.Context(), consultation.TransitionInput{
		ConsultationID:  id,
		Status:          req.Status,
		AdminNote:       req.AdminNote,
		AlternativeDate: req.AlternativeDate,
		AlternativeTime: req.AlternativeTime,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, fmt.Sprintf("Consultation %s", updated.Status), updated)
}
