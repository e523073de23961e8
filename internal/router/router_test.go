package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/carelink-api/internal/middleware"
)

type stubHandler struct {
	path string
}

func (s stubHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET(s.path, func(c *gin.Context) { c.String(http.StatusOK, c.FullPath()) })
}

type stubRoot struct{}

func (stubRoot) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newTestRouter() *gin.Engine {
	r := NewRouter(Handlers{
		Auth:         stubHandler{path: "/login"},
		User:         stubHandler{path: "/consultations"},
		Clinic:       stubHandler{path: "/my-patients"},
		Admin:        stubHandler{path: "/pending-clinics"},
		Notification: stubHandler{path: "/unread-count"},
		Live:         stubRoot{},
	}, RouterConfig{Mode: gin.TestMode, AllowedOrigins: []string{"*"}})
	r.Setup()
	return r.Engine()
}

func TestSetupMountsGroups(t *testing.T) {
	engine := newTestRouter()

	for _, path := range []string{
		"/api/user/login",
		"/api/clinic/login",
		"/api/user/consultations",
		"/api/clinic/my-patients",
		"/api/admin/pending-clinics",
		"/api/notifications/unread-count",
	} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, path, w.Body.String())
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMiddlewareChain(t *testing.T) {
	engine := newTestRouter()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/user/login", nil))

	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
