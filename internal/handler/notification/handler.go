package notification

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
	notificationService "github.com/jwalitptl/carelink-api/internal/service/notification"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
)

type Service interface {
	List(ctx context.Context, in notificationService.ListInput) (*notificationService.ListResult, error)
	MarkRead(ctx context.Context, notificationID, recipientID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID, role model.Role) (int64, error)
}

// Handler serves the caller's notification inbox. Every route needs a
// bearer token; the caller's id and role select the inbox.
type Handler struct {
	svc  Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	inbox := r.Group("", h.auth.Authenticate())
	{
		inbox.GET("/get-notifications", h.List)
		inbox.POST("/read-notification", h.MarkRead)
		inbox.POST("/read-all-notifications", h.MarkAllRead)
		inbox.GET("/unread-count", h.UnreadCount)
	}
}

type listQuery struct {
	model.Pagination
	IncludeRead bool `form:"includeRead"`
}

type listResponse struct {
	Notifications []*model.Notification `json:"notifications"`
	Pagination    httputil.Pagination   `json:"pagination"`
}

func (h *Handler) List(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	result, err := h.svc.List(c.Request.Context(), notificationService.ListInput{
		RecipientID:   caller.ID,
		RecipientRole: caller.Role,
		Page:          q.Page,
		Limit:         q.Limit,
		IncludeRead:   q.IncludeRead,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	notifications := result.Notifications
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", listResponse{
		Notifications: notifications,
		Pagination:    httputil.NewPagination(result.Page, result.Limit, result.Total, result.Unread),
	})
}

type markReadRequest struct {
	NotificationID string `json:"notificationId" binding:"required"`
}

func (h *Handler) MarkRead(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	var req markReadRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(req.NotificationID))
	if err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), id, caller.ID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "Notification marked as read", nil)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}

	n, err := h.svc.MarkAllRead(c.Request.Context(), caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, fmt.Sprintf("%d notifications marked as read", n), gin.H{"modified": n})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}

	n, err := h.svc.UnreadCount(c.Request.Context(), caller.ID, caller.Role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "", gin.H{"unreadCount": n})
}
