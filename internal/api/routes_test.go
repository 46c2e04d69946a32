package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debate_timer/internal/debate"
	"debate_timer/internal/models"
	"debate_timer/internal/registry"
	"debate_timer/internal/relay"
	"debate_timer/internal/service"
	"debate_timer/internal/utils"
)

func newRouter(t *testing.T, relayEnabled bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := clockwork.NewFakeClock()
	tokens := utils.NewTokenManager("test-secret", "test", time.Hour, time.Hour)
	services := service.NewServices(
		registry.NewMemory(clock),
		relay.NewHub(relay.Options{}),
		tokens,
		debate.DefaultCatalog(),
		clock,
		service.Options{RelayEnabled: relayEnabled},
	)
	t.Cleanup(services.Debate.Shutdown)

	r := gin.New()
	SetupRoutes(r, services)
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func createRoom(t *testing.T, r http.Handler, roomID string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/rooms", "", gin.H{"roomId": roomID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Success        bool   `json:"success"`
		ModeratorToken string `json:"moderatorToken"`
	}
	decode(t, w, &resp)
	require.True(t, resp.Success)
	return resp.ModeratorToken
}

func TestHealthAndNoRoute(t *testing.T) {
	r := newRouter(t, true)

	w := do(t, r, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestRoomRoutes(t *testing.T) {
	r := newRouter(t, true)

	w := do(t, r, http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/rooms?room=room-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists":false}`, w.Body.String())

	token := createRoom(t, r, "room-1")
	assert.NotEmpty(t, token)

	w = do(t, r, http.MethodPost, "/api/rooms", "", gin.H{"roomId": "room-1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, r, http.MethodPost, "/api/rooms", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodPost, "/api/rooms", "", gin.H{"roomId": "bad room!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	st := debate.NewRunState(debate.Config{Steps: []debate.Step{{ID: "s", Type: debate.StepOpening, Time: 90}}})
	w = do(t, r, http.MethodPut, "/api/rooms", "", gin.H{"roomId": "room-1", "debateState": st})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, http.MethodPut, "/api/rooms", token, gin.H{"roomId": "room-2", "debateState": st})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodPut, "/api/rooms", token, gin.H{"roomId": "room-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodPut, "/api/rooms", token, gin.H{"roomId": "room-1", "debateState": st})
	assert.Equal(t, http.StatusOK, w.Code)

	var status service.RoomStatus
	w = do(t, r, http.MethodGet, "/api/rooms?room=room-1", "", nil)
	decode(t, w, &status)
	assert.True(t, status.Exists)
	require.NotNil(t, status.State)
	assert.Equal(t, 90, status.State.RemainingTime)

	w = do(t, r, http.MethodDelete, "/api/rooms?room=room-1", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, http.MethodDelete, "/api/rooms?room=room-1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	// 重複刪除仍然成功
	w = do(t, r, http.MethodDelete, "/api/rooms?room=room-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoomRoutes_LocalRoom(t *testing.T) {
	r := newRouter(t, true)

	w := do(t, r, http.MethodPost, "/api/rooms", "", gin.H{"roomId": "local-abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/rooms?room=local-abc", "", nil)
	assert.JSONEq(t, `{"exists":false}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/negotiate?room=local-abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModeratorAuth_MalformedHeader(t *testing.T) {
	r := newRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms?room=room-1", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNegotiateRoute(t *testing.T) {
	r := newRouter(t, true)
	token := createRoom(t, r, "room-1")

	w := do(t, r, http.MethodGet, "/api/negotiate", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/negotiate?room=room-1&role=moderator", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodGet, "/api/negotiate?room=room-1&role=judge", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/negotiate?room=room-1&role=moderator", nil)
	req.Header.Set("X-Moderator-Token", token)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Host = "debate.example.com"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var n service.Negotiation
	decode(t, rec, &n)
	assert.Equal(t, "moderator", n.Role)
	assert.Equal(t, []string{"debate.room-1"}, n.Groups)
	assert.True(t, strings.HasPrefix(n.URL, "wss://debate.example.com/api/relay/ws?access_token="), n.URL)

	disabled := newRouter(t, false)
	w = do(t, disabled, http.MethodGet, "/api/negotiate?room=room-1", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRelayRoute(t *testing.T) {
	r := newRouter(t, true)
	createRoom(t, r, "room-1")

	w := do(t, r, http.MethodGet, "/api/relay/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	server := httptest.NewServer(r)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/negotiate?room=room-1")
	require.NoError(t, err)
	var n service.Negotiation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&n))
	resp.Body.Close()

	conn, _, err := websocket.DefaultDialer.Dial(n.URL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.MessageSystem, msg.Type)
	assert.Equal(t, models.EventConnected, msg.Event)
	assert.Equal(t, n.UserID, msg.UserID)
}

func TestTemplateRoutes(t *testing.T) {
	r := newRouter(t, true)

	var visible, all []debate.Template
	decode(t, do(t, r, http.MethodGet, "/api/templates", "", nil), &visible)
	decode(t, do(t, r, http.MethodGet, "/api/templates?all=true", "", nil), &all)
	assert.Less(t, len(visible), len(all))

	var tpl debate.Template
	w := do(t, r, http.MethodGet, "/api/templates/free-debate", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &tpl)
	assert.Equal(t, "free-debate", tpl.ID)

	w = do(t, r, http.MethodGet, "/api/templates/free-debate?variant=visual-free-debate", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &tpl)
	assert.Equal(t, 60, tpl.Steps[0].Time)

	w = do(t, r, http.MethodGet, "/api/templates/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodGet, "/api/templates/free-debate?variant=unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebateRoutes(t *testing.T) {
	r := newRouter(t, true)
	token := createRoom(t, r, "room-1")

	w := do(t, r, http.MethodPost, "/api/debates/room-1", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodPost, "/api/debates/room-1", "", gin.H{"templateId": "free-debate"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/api/debates/room-1", token, gin.H{"templateId": "free-debate"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view service.RunView
	decode(t, w, &view)
	assert.Equal(t, "room-1", view.Room)
	assert.Equal(t, 0, view.State.CurrentStepIndex)
	assert.Equal(t, "2:00", view.Display)

	// 沒有憑證的指令被拒絕，狀態不變
	w = do(t, r, http.MethodPost, "/api/debates/room-1/commands", "", gin.H{"type": "next"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	decode(t, do(t, r, http.MethodGet, "/api/debates/room-1", "", nil), &view)
	assert.Equal(t, 0, view.State.CurrentStepIndex)

	w = do(t, r, http.MethodPost, "/api/debates/room-1/commands", token, gin.H{"type": "next"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &view)
	assert.Equal(t, 1, view.State.CurrentStepIndex)

	w = do(t, r, http.MethodPost, "/api/debates/room-1/commands", token, gin.H{"type": "toggle"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.True(t, view.State.IsRunning)

	w = do(t, r, http.MethodPost, "/api/debates/room-1/commands", token, gin.H{"type": "dance"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodPost, "/api/debates/room-1/commands", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodDelete, "/api/debates/room-1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/debates/room-1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodDelete, "/api/debates/room-1", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebateRoutes_LocalRoomNeedsNoToken(t *testing.T) {
	r := newRouter(t, true)

	steps := []debate.Step{{ID: "s", Type: debate.StepOpening, Time: 30, Team: debate.TeamFor}}
	w := do(t, r, http.MethodPost, "/api/debates/local-1", "", gin.H{"config": debate.Config{TemplateName: "custom", Steps: steps}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view service.RunView
	w = do(t, r, http.MethodPost, "/api/debates/local-2", "", gin.H{"config": gin.H{
		"templateName": "custom",
		"steps": []gin.H{
			{"type": "입론", "time": 60},
			{"type": "마무리 발언", "time": 60},
		},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &view)
	assert.Equal(t, "step-2", view.Config.Steps[1].ID)

	w = do(t, r, http.MethodPost, "/api/debates/local-1", "", gin.H{"config": debate.Config{TemplateName: "empty"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
