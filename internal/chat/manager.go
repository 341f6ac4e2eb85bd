package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"emitra-backend/internal/logger"
	"emitra-backend/internal/models"
)

// EventPublisher pushes session events to a user's live connections.
type EventPublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// Manager keeps one Session per user. Sessions live only in memory and are
// dropped on Close.
type Manager struct {
	completer Completer
	publisher EventPublisher
	timeout   time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(completer Completer, publisher EventPublisher, timeout time.Duration) *Manager {
	return &Manager{
		completer: completer,
		publisher: publisher,
		timeout:   timeout,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Open (re)seeds the user's session, creating it on first use. The seed
// happens under m.mu so a concurrent Close cannot unregister the session
// between lookup and reseed.
func (m *Manager) Open(user *models.User) Snapshot {
	m.mu.Lock()
	s, ok := m.sessions[user.ID]
	if !ok {
		s = NewSession(m.completer, m.timeout)
		s.notify = m.notifier(user.ID)
		m.sessions[user.ID] = s
	}
	snap := s.Open(user)
	m.mu.Unlock()

	logger.WithFields(map[string]interface{}{"user_id": user.ID}).Debug("chat session opened")
	return snap
}

func (m *Manager) Get(userID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Send forwards to the user's session. ErrClosed is returned when no
// session has been opened.
func (m *Manager) Send(ctx context.Context, userID uuid.UUID, text string) (Snapshot, error) {
	s, ok := m.Get(userID)
	if !ok {
		return Snapshot{State: StateClosed, Transcript: models.Transcript{}}, ErrClosed
	}
	return s.Send(ctx, text)
}

// Close discards the user's session. It reports whether one existed.
func (m *Manager) Close(userID uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Close()
		logger.WithFields(map[string]interface{}{"user_id": userID}).Debug("chat session closed")
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) notifier(userID uuid.UUID) func(models.WSMessage) {
	if m.publisher == nil {
		return nil
	}
	return func(msg models.WSMessage) {
		m.publisher.PublishUpdate(context.Background(), userID, msg)
	}
}
