package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/carelink-api/internal/handler"
	"github.com/jwalitptl/carelink-api/internal/model"
	authService "github.com/jwalitptl/carelink-api/internal/service/auth"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
)

type Service interface {
	Login(ctx context.Context, in authService.LoginInput) (*authService.Session, error)
	ForgotPassword(ctx context.Context, ref authService.AccountRef, email string) error
	VerifyOTP(ctx context.Context, ref authService.AccountRef, email, otp string) error
	ResetPassword(ctx context.Context, ref authService.AccountRef, email, newPassword string) error
}

// Handler serves the credential endpoints shared by patients and
// providers. The same routes are mounted under /user and /clinic.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Login)
	r.POST("/forgot-password", h.ForgotPassword)
	r.POST("/verify-otp", h.VerifyOTP)
	r.POST("/reset-password", h.ResetPassword)
}

type accountRequest struct {
	Email      string     `json:"email" binding:"required,email"`
	Role       model.Role `json:"role" binding:"required"`
	EntityType string     `json:"entityType"`
}

func (r accountRequest) ref() authService.AccountRef {
	return authService.AccountRef{Role: r.Role, EntityType: entityType(r.EntityType)}
}

// entityType keeps unknown values as-is so the service reports them.
func entityType(s string) model.EntityType {
	if t, ok := model.ParseEntityType(s); ok {
		return t
	}
	return model.EntityType(s)
}

type loginRequest struct {
	accountRequest
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.svc.Login(c.Request.Context(), authService.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		EntityType: entityType(req.EntityType),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "Login successful", session)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req accountRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ForgotPassword(c.Request.Context(), req.ref(), req.Email); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "OTP sent to your email", nil)
}

type verifyOTPRequest struct {
	accountRequest
	OTP string `json:"otp" binding:"required"`
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.VerifyOTP(c.Request.Context(), req.ref(), req.Email, req.OTP); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "OTP verified successfully", nil)
}

type resetPasswordRequest struct {
	accountRequest
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), req.ref(), req.Email, req.NewPassword); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "Password reset successfully", nil)
}
