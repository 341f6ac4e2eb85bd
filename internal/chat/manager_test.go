package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emitra-backend/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events map[uuid.UUID][]models.WSMessage
}

func (p *recordingPublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[uuid.UUID][]models.WSMessage)
	}
	p.events[userID] = append(p.events[userID], msg)
}

func TestManager_SendWithoutOpen(t *testing.T) {
	m := NewManager(&stubCompleter{}, nil, time.Second)

	snap, err := m.Send(context.Background(), uuid.New(), "hello")

	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StateClosed, snap.State)
	assert.Empty(t, snap.Transcript)
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	publisher := &recordingPublisher{}
	m := NewManager(&stubCompleter{result: models.CompletionOk("ok")}, publisher, time.Second)

	alice := &models.User{ID: uuid.New(), Name: "Alice"}
	bob := &models.User{ID: uuid.New(), Name: "Bob"}
	m.Open(alice)
	m.Open(bob)
	require.Equal(t, 2, m.Len())

	_, err := m.Send(context.Background(), alice.ID, "hello")
	require.NoError(t, err)

	aliceSession, ok := m.Get(alice.ID)
	require.True(t, ok)
	bobSession, ok := m.Get(bob.ID)
	require.True(t, ok)

	assert.Len(t, aliceSession.Transcript(), 3)
	assert.Len(t, bobSession.Transcript(), 1)
	assert.Len(t, publisher.events[alice.ID], 2)
	assert.Empty(t, publisher.events[bob.ID])
}

func TestManager_Close(t *testing.T) {
	m := NewManager(&stubCompleter{}, nil, time.Second)
	user := &models.User{ID: uuid.New(), Name: "Alice"}
	m.Open(user)
	s, _ := m.Get(user.ID)

	assert.True(t, m.Close(user.ID))
	assert.False(t, m.Close(user.ID))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, StateClosed, s.State())

	_, err := m.Send(context.Background(), user.ID, "hello")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_ReopenKeepsSession(t *testing.T) {
	m := NewManager(&stubCompleter{result: models.CompletionOk("ok")}, nil, time.Second)
	user := &models.User{ID: uuid.New(), Name: "Alice"}

	m.Open(user)
	first, _ := m.Get(user.ID)
	m.Send(context.Background(), user.ID, "hello")

	snap := m.Open(user)
	second, _ := m.Get(user.ID)

	assert.Same(t, first, second)
	assert.Len(t, snap.Transcript, 1)
}

func TestManager_OpenHoldsRegistryUntilSeeded(t *testing.T) {
	m := NewManager(&stubCompleter{}, nil, time.Second)
	user := &models.User{ID: uuid.New(), Name: "Alice"}
	m.Open(user)
	s, _ := m.Get(user.ID)

	// Stall the reseed so Open is caught between lookup and seeding.
	s.mu.Lock()
	opened := make(chan Snapshot)
	go func() { opened <- m.Open(user) }()

	require.Eventually(t, func() bool {
		if m.mu.TryLock() {
			m.mu.Unlock()
			return false
		}
		return true
	}, time.Second, time.Millisecond, "Open must hold the registry lock while seeding")

	closed := make(chan bool)
	go func() { closed <- m.Close(user.ID) }()
	select {
	case <-closed:
		t.Fatal("Close finished while Open was still seeding")
	case <-time.After(50 * time.Millisecond):
	}

	s.mu.Unlock()
	snap := <-opened
	assert.Equal(t, StateIdle, snap.State)
	assert.True(t, <-closed)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, StateClosed, s.State())
}
