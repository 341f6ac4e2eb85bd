package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emitra-backend/internal/models"
)

type recordingLocal struct {
	users    []uuid.UUID
	messages []models.WSMessage
}

func (l *recordingLocal) SendToUser(userID uuid.UUID, msg models.WSMessage) {
	l.users = append(l.users, userID)
	l.messages = append(l.messages, msg)
}

func TestUserChannel(t *testing.T) {
	id := uuid.MustParse("6f1c1f3e-2b8a-4a57-9e0c-3d9b8f0a1c22")
	assert.Equal(t, "user_events:6f1c1f3e-2b8a-4a57-9e0c-3d9b8f0a1c22", UserChannel(id))
}

func TestPublisher_FallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	local := &recordingLocal{}
	publisher := NewPublisher(client).WithFallback(local)
	userID := uuid.New()

	publisher.PublishUpdate(context.Background(), userID, models.WSMessage{Type: models.EventSOSCreated, Payload: "hi"})

	require.Len(t, local.messages, 1)
	assert.Equal(t, userID, local.users[0])
	assert.Equal(t, models.EventSOSCreated, local.messages[0].Type)
}
