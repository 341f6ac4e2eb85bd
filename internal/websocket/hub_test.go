package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emitra-backend/internal/middleware"
	"emitra-backend/internal/models"
)

func TestAuthenticate(t *testing.T) {
	auth := middleware.NewJWTAuth("secret")
	hub := NewHub(nil, auth)
	userID := uuid.New()
	token, err := auth.GenerateAccessToken(userID, "9876543210")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?token="+token, nil)
	got, err := hub.authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	got, err = hub.authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = hub.authenticate(httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))
	assert.ErrorIs(t, err, errMissingToken)

	_, err = hub.authenticate(httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=bogus", nil))
	assert.Error(t, err)
}

func TestHandleWebSocket_RejectsWithoutToken(t *testing.T) {
	hub := NewHub(nil, middleware.NewJWTAuth("secret"))

	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSendToUser(t *testing.T) {
	auth := middleware.NewJWTAuth("secret")
	hub := NewHub(nil, auth)
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	userID := uuid.New()
	token, _ := auth.GenerateAccessToken(userID, "9876543210")
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token

	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected(userID) == 1 }, time.Second, 10*time.Millisecond)

	hub.SendToUser(userID, models.WSMessage{Type: models.EventSOSCreated, Payload: "hi"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg models.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.EventSOSCreated, msg.Type)
	assert.Equal(t, "hi", msg.Payload)
}
