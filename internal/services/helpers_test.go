package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"emitra-backend/internal/models"
)

// memStore is an in-memory KeyValueStore. TTLs are recorded, not enforced.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	if _, ok := m.ttls[key]; !ok {
		m.ttls[key] = ttl
	}
	return n, nil
}

func (m *memStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *memStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		delete(m.ttls, k)
	}
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []models.WSMessage
	users    []uuid.UUID
}

func (p *recordingPublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	p.messages = append(p.messages, msg)
}

func floatPtr(v float64) *float64 { return &v }
