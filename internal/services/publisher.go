package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"emitra-backend/internal/logger"
	"emitra-backend/internal/models"
)

// UserChannel is the Redis pub/sub channel carrying a user's live events.
func UserChannel(userID uuid.UUID) string {
	return "user_events:" + userID.String()
}

// localDelivery hands an event straight to this instance's connections.
type localDelivery interface {
	SendToUser(userID uuid.UUID, msg models.WSMessage)
}

type Publisher struct {
	redis *redis.Client
	local localDelivery
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

// WithFallback delivers events to local when Redis publish fails. Must be
// called before the publisher is shared.
func (p *Publisher) WithFallback(local localDelivery) *Publisher {
	p.local = local
	return p
}

// PublishUpdate sends a WebSocket update via Redis pub/sub. If Redis is
// unreachable, users connected to this instance still get the event.
func (p *Publisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Warnf("failed to encode %s event: %v", msg.Type, err)
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		logger.Warnf("failed to publish %s event for user %s: %v", msg.Type, userID, err)
		if p.local != nil {
			p.local.SendToUser(userID, msg)
		}
	}
}
