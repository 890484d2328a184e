package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
	"chat-client/internal/presence"
	"chat-client/internal/socket"
	"chat-client/internal/unread"
)

func monitorRouter(token string) (*gin.Engine, *unread.Aggregator, *presence.Set) {
	gin.SetMode(gin.TestMode)
	ps := presence.NewSet()
	agg := unread.NewAggregator()
	h := NewMonitorHandler(socket.NewManager("ws://test/ws", ps), agg, ps)

	router := gin.New()
	router.GET("/healthz", h.Healthz)
	router.GET("/debug/state", MonitorAuth(token), h.State)
	return router, agg, ps
}

func TestHealthz(t *testing.T) {
	router, _, _ := monitorRouter("")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStateSnapshot(t *testing.T) {
	router, agg, ps := monitorRouter("")
	agg.InitFromRooms([]models.Room{{ID: "r1", Kind: models.RoomGroup, Unread: 4}}, "me")
	ps.Replace([]string{"u2", "u3"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/debug/state", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Connection    string         `json:"connection"`
		UnreadRooms   map[string]int `json:"unread_rooms"`
		Online        []string       `json:"online"`
		PresenceStale bool           `json:"presence_stale"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "DISCONNECTED", body.Connection)
	assert.Equal(t, 4, body.UnreadRooms["r1"])
	assert.Equal(t, []string{"u2", "u3"}, body.Online)
	assert.False(t, body.PresenceStale)
}

func TestMonitorAuthRejectsBadToken(t *testing.T) {
	router, _, _ := monitorRouter("secret")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/debug/state", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/debug/state", nil)
	req.Header.Set("X-Monitor-Token", "wrong")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMonitorAuthAcceptsToken(t *testing.T) {
	router, _, _ := monitorRouter("secret")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/debug/state", nil)
	req.Header.Set("X-Monitor-Token", "secret")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
