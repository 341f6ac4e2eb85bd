package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emitra-backend/internal/chat"
	"emitra-backend/internal/models"
)

type stubCompleter struct {
	result models.CompletionResult
	last   models.CompletionRequest
}

func (c *stubCompleter) Complete(ctx context.Context, req models.CompletionRequest) models.CompletionResult {
	c.last = req
	return c.result
}

func newChatHandler(result models.CompletionResult) (*ChatHandler, *stubCompleter, *models.User) {
	completer := &stubCompleter{result: result}
	user := &models.User{ID: uuid.New(), Name: "Asha"}
	manager := chat.NewManager(completer, nil, time.Second)
	return NewChatHandler(manager, completer, &stubUsers{user: user}, time.Second), completer, user
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) chat.Snapshot {
	t.Helper()
	var snap chat.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	return snap
}

func TestChatHandler_OpenSendClose(t *testing.T) {
	h, _, user := newChatHandler(models.CompletionOk("Share your location with a friend."))

	rr := httptest.NewRecorder()
	h.Open(rr, newRequest(http.MethodPost, "/api/v1/chat/open", "", user.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	opened := decodeSnapshot(t, rr)
	require.Len(t, opened.Transcript, 1)
	assert.Contains(t, opened.Transcript[0].Content, "Hi Asha!")

	rr = httptest.NewRecorder()
	h.Send(rr, newRequest(http.MethodPost, "/api/v1/chat/messages", `{"message":"I am scared"}`, user.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	sent := decodeSnapshot(t, rr)
	require.Len(t, sent.Transcript, 3)
	assert.Equal(t, "Share your location with a friend.", sent.Transcript[2].Content)

	rr = httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/api/v1/chat", "", user.ID))
	assert.Len(t, decodeSnapshot(t, rr).Transcript, 3)

	rr = httptest.NewRecorder()
	h.Close(rr, newRequest(http.MethodDelete, "/api/v1/chat", "", user.ID))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/api/v1/chat", "", user.ID))
	closed := decodeSnapshot(t, rr)
	assert.Equal(t, chat.StateClosed, closed.State)
	assert.Empty(t, closed.Transcript)
}

func TestChatHandler_SendErrors(t *testing.T) {
	h, _, user := newChatHandler(models.CompletionOk("ok"))

	rr := httptest.NewRecorder()
	h.Send(rr, newRequest(http.MethodPost, "/", `{"message":"hello"}`, user.ID))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "CHAT_NOT_OPEN", decodeError(t, rr).Code)

	h.Open(httptest.NewRecorder(), newRequest(http.MethodPost, "/", "", user.ID))

	rr = httptest.NewRecorder()
	h.Send(rr, newRequest(http.MethodPost, "/", `{"message":"   "}`, user.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Send(rr, newRequest(http.MethodPost, "/", `nope`, user.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatHandler_SendFailureReturnsSnapshot(t *testing.T) {
	h, _, user := newChatHandler(models.CompletionErr("quota exceeded"))
	h.Open(httptest.NewRecorder(), newRequest(http.MethodPost, "/", "", user.ID))

	rr := httptest.NewRecorder()
	h.Send(rr, newRequest(http.MethodPost, "/", `{"message":"hello"}`, user.ID))

	assert.Equal(t, http.StatusOK, rr.Code)
	snap := decodeSnapshot(t, rr)
	assert.Equal(t, "quota exceeded", snap.Error)
	assert.Len(t, snap.Transcript, 1)
}

func TestChatHandler_OpenUnknownUser(t *testing.T) {
	h, _, _ := newChatHandler(models.CompletionOk("ok"))

	rr := httptest.NewRecorder()
	h.Open(rr, newRequest(http.MethodPost, "/", "", uuid.New()))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChatHandler_Complete(t *testing.T) {
	h, completer, user := newChatHandler(models.CompletionOk("Move towards people."))

	body := `{"message":" What now? ","history":[{"role":"model","content":"Hi!"},{"role":"user","content":"I am lost"}]}`
	rr := httptest.NewRecorder()
	h.Complete(rr, newRequest(http.MethodPost, "/", body, user.ID))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp models.ChatResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Move towards people.", resp.Reply)

	assert.Equal(t, chat.Persona(), completer.last.Persona)
	assert.Equal(t, "What now?", completer.last.Message)
	assert.Len(t, completer.last.History, 2)
}

func TestChatHandler_CompleteValidation(t *testing.T) {
	h, _, user := newChatHandler(models.CompletionOk("unused"))

	rr := httptest.NewRecorder()
	h.Complete(rr, newRequest(http.MethodPost, "/", `{"message":"","history":[{"role":"system","content":"x"}]}`, user.ID))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	fields := decodeError(t, rr).Fields
	assert.Contains(t, fields, "message")
	assert.Contains(t, fields, "history[0].role")
}

func TestChatHandler_CompleteFailure(t *testing.T) {
	h, _, user := newChatHandler(models.CompletionErr("no text returned"))

	rr := httptest.NewRecorder()
	h.Complete(rr, newRequest(http.MethodPost, "/", `{"message":"hello"}`, user.ID))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, "AI_ERROR", apiErr.Code)
	assert.Equal(t, "no text returned", apiErr.Message)
}
