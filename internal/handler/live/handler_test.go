package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/carelink-api/pkg/auth"
	"github.com/jwalitptl/carelink-api/pkg/live"
	"github.com/jwalitptl/carelink-api/pkg/logger"
	"github.com/jwalitptl/carelink-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveLive(t *testing.T, registry *live.Registry, cfg Config) string {
	t.Helper()
	r := gin.New()
	NewHandler(registry, cfg, metrics.New("test").LiveConnections, logger.Nop()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebsocketRegisterAndDeliver(t *testing.T) {
	registry := live.NewRegistry()
	m := metrics.New("test")
	r := gin.New()
	NewHandler(registry, Config{}, m.LiveConnections, logger.Nop()).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"register","data":"patient-1"}`)))
	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("patient-1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LiveConnections))

	delivered, err := registry.Deliver("patient-1", live.EventNotification, map[string]string{"message": "hello"})
	require.NoError(t, err)
	assert.True(t, delivered)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame live.Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, live.EventNotification, frame.Event)
	assert.JSONEq(t, `{"message":"hello"}`, string(frame.Data))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("patient-1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.LiveConnections) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
	assert.True(t, originChecker(nil)(req))
}

func TestTokenBindsSession(t *testing.T) {
	registry := live.NewRegistry()
	tokens := auth.NewJWTService("test-secret", time.Hour)
	url := serveLive(t, registry, Config{Tokens: tokens, RequireToken: true})

	token, err := tokens.GenerateToken(auth.Claims{ID: "patient-1", Role: 300})
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("patient-1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"register","data":"admin-1"}`)))
	assert.Never(t, func() bool {
		_, ok := registry.Lookup("admin-1")
		return ok
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestUpgradeRejectsBadOrMissingToken(t *testing.T) {
	tokens := auth.NewJWTService("test-secret", time.Hour)
	url := serveLive(t, live.NewRegistry(), Config{Tokens: tokens, RequireToken: true})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerHeaderAccepted(t *testing.T) {
	registry := live.NewRegistry()
	tokens := auth.NewJWTService("test-secret", time.Hour)
	url := serveLive(t, registry, Config{Tokens: tokens})

	token, err := tokens.GenerateToken(auth.Claims{ID: "clinic-4", Role: 400})
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("clinic-4")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
