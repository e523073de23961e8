package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/carelink-api/internal/middleware"
	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/internal/repository/memory"
	notificationService "github.com/jwalitptl/carelink-api/internal/service/notification"
	"github.com/jwalitptl/carelink-api/pkg/auth"
	"github.com/jwalitptl/carelink-api/pkg/live"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	svc     *notificationService.Service
	router  *gin.Engine
	jwt     auth.JWTService
	patient uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		svc: notificationService.NewService(store.Notifications(),
			notificationService.NewLocalPusher(live.NewRegistry()), logger.Nop(), metrics.New("test")),
		router:  gin.New(),
		jwt:     auth.NewJWTService("test-secret", time.Hour),
		patient: uuid.New(),
	}
	NewHandler(f.svc, middleware.NewAuthMiddleware(f.jwt)).RegisterRoutes(f.router.Group("/api/notifications"))
	return f
}

func (f *fixture) seed(t *testing.T, recipient uuid.UUID, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		created, err := f.svc.Notify(context.Background(), notificationService.NotifyInput{
			RecipientID:   recipient,
			RecipientRole: model.RolePatient,
			Message:       "Your consultation has been approved",
		})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	return ids
}

func (f *fixture) do(t *testing.T, method, path, body string, caller uuid.UUID) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	token, err := f.jwt.GenerateToken(auth.Claims{ID: caller.String(), Role: int(model.RolePatient)})
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

type listData struct {
	Notifications []model.Notification `json:"notifications"`
	Pagination    struct {
		CurrentPage int   `json:"currentPage"`
		TotalPages  int   `json:"totalPages"`
		Total       int64 `json:"totalNotifications"`
		UnreadCount int64 `json:"unreadCount"`
	} `json:"pagination"`
}

func TestListPaginatesUnread(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.patient, 3)
	f.seed(t, uuid.New(), 2)

	w, resp := f.do(t, http.MethodGet, "/api/notifications/get-notifications?page=2&limit=2", "", f.patient)
	require.Equal(t, http.StatusOK, w.Code)

	var data listData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Len(t, data.Notifications, 1)
	assert.Equal(t, 2, data.Pagination.CurrentPage)
	assert.Equal(t, 2, data.Pagination.TotalPages)
	assert.Equal(t, int64(3), data.Pagination.Total)
	assert.Equal(t, int64(3), data.Pagination.UnreadCount)
}

func TestListHugePageIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.patient, 3)

	w, resp := f.do(t, http.MethodGet, "/api/notifications/get-notifications?page=9223372036854775807&limit=20", "", f.patient)
	require.Equal(t, http.StatusOK, w.Code)

	var data listData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Empty(t, data.Notifications)
	assert.Equal(t, model.MaxPage, data.Pagination.CurrentPage)
	assert.Equal(t, int64(3), data.Pagination.Total)
}

func TestListEmptyInboxReturnsArray(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, http.MethodGet, "/api/notifications/get-notifications", "", f.patient)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"notifications":[]`)
}

func TestMarkReadOwnership(t *testing.T) {
	f := newFixture(t)
	ids := f.seed(t, f.patient, 1)
	body := `{"notificationId":"` + ids[0].String() + `"}`

	w, resp := f.do(t, http.MethodPost, "/api/notifications/read-notification", body, uuid.New())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Notification not found or unauthorized", resp.Message)

	w, _ = f.do(t, http.MethodPost, "/api/notifications/read-notification", body, f.patient)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/notifications/read-notification", body, f.patient)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/notifications/unread-count", "", f.patient)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unreadCount":0}`, string(resp.Data))
}

func TestMarkReadRejectsBadID(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/notifications/read-notification", `{"notificationId":"x"}`, f.patient)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid notification ID", resp.Message)
}

func TestMarkAllRead(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.patient, 2)

	w, resp := f.do(t, http.MethodPost, "/api/notifications/read-all-notifications", "", f.patient)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2 notifications marked as read", resp.Message)

	w, resp = f.do(t, http.MethodPost, "/api/notifications/read-all-notifications", "", f.patient)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0 notifications marked as read", resp.Message)

	w, resp = f.do(t, http.MethodGet, "/api/notifications/get-notifications?includeRead=true", "", f.patient)
	require.Equal(t, http.StatusOK, w.Code)
	var data listData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Len(t, data.Notifications, 2)
	assert.Equal(t, int64(0), data.Pagination.UnreadCount)
}

func TestInboxRequiresToken(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications/unread-count", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
