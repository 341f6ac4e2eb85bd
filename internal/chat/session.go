package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"emitra-backend/internal/models"
)

type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateClosed  State = "closed"
)

var (
	ErrEmptyMessage = errors.New("chat: message is empty")
	ErrPending      = errors.New("chat: a reply is already pending")
	ErrClosed       = errors.New("chat: session is not open")
)

const noTextReason = "no text returned"

// Completer runs one request/response exchange with the language model.
// Failures come back as CompletionErr values, never as panics.
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) models.CompletionResult
}

// Snapshot is everything a client needs to render a session.
type Snapshot struct {
	State      State             `json:"state"`
	Transcript models.Transcript `json:"transcript"`
	Pending    bool              `json:"pending"`
	Error      string            `json:"error,omitempty"`
}

// Session owns the transcript of one open conversation. Only one completion
// may be outstanding at a time; a second Send while pending is rejected.
type Session struct {
	completer Completer
	persona   string
	timeout   time.Duration
	notify    func(models.WSMessage)

	mu         sync.Mutex
	state      State
	transcript models.Transcript
	lastErr    string
	// epoch changes on Open and Close so late replies can be recognised.
	epoch uint64
}

func NewSession(completer Completer, timeout time.Duration) *Session {
	return &Session{
		completer:  completer,
		persona:    Persona(),
		timeout:    timeout,
		state:      StateIdle,
		transcript: models.Transcript{},
	}
}

// Open resets the session to a single personalised greeting.
func (s *Session) Open(user *models.User) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.transcript = models.Seed(Greeting(user))
	s.lastErr = ""
	s.state = StateIdle
	return s.snapshotLocked()
}

// Close discards the transcript. A reply still in flight is ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.transcript = nil
	s.lastErr = ""
	s.state = StateClosed
}

// Send appends the user's turn optimistically and asks the completer for a
// reply. On failure the transcript is restored to what it was before the
// call and the reason is kept as the session error. The returned error is
// only set for rejected preconditions.
func (s *Session) Send(ctx context.Context, text string) (Snapshot, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	switch {
	case s.state == StateClosed:
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrClosed
	case s.state == StatePending:
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrPending
	case text == "":
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrEmptyMessage
	}

	before := s.transcript
	s.transcript = before.Append(models.Turn{Role: models.RoleUser, Content: text})
	s.lastErr = ""
	s.state = StatePending
	epoch := s.epoch
	req := Assemble(s.persona, before, text)
	pending := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(models.EventChatPending, models.ChatEvent{Size: len(pending.Transcript)})

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	result := s.completer.Complete(callCtx, req)
	if result.IsOk() && strings.TrimSpace(result.Text) == "" {
		result = models.CompletionErr(noTextReason)
	}

	s.mu.Lock()
	if epoch != s.epoch {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	var event models.WSMessage
	if result.IsOk() {
		reply := models.Turn{Role: models.RoleModel, Content: result.Text}
		s.transcript = s.transcript.Append(reply)
		event = models.WSMessage{Type: models.EventChatReply, Payload: models.ChatEvent{Turn: &reply, Size: len(s.transcript)}}
	} else {
		s.transcript = before
		s.lastErr = result.Reason
		event = models.WSMessage{Type: models.EventChatError, Payload: models.ChatEvent{Error: result.Reason, Size: len(s.transcript)}}
	}
	s.state = StateIdle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(event.Type, event.Payload)
	return snap, nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Transcript() models.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Pending() bool {
	return s.State() == StatePending
}

func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:      s.state,
		Transcript: s.transcript.Clone(),
		Pending:    s.state == StatePending,
		Error:      s.lastErr,
	}
}

func (s *Session) emit(eventType string, payload interface{}) {
	if s.notify == nil {
		return
	}
	s.notify(models.WSMessage{Type: eventType, Payload: payload})
}
