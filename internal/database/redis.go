package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisConnectTimeout = 10 * time.Second

// RedisClients keeps key, list and publish traffic (Queue) apart from the
// hub's long-lived subscriptions (PubSub), so a burst of BLPOP workers can
// never starve subscribers of connections.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

// NewRedisClients connects both roles to the same server. Each client gets
// its own CLIENT SETNAME so they can be told apart in CLIENT LIST.
func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	queue, err := dialRedis(ctx, clientOptions(opt, "queue"))
	if err != nil {
		return nil, err
	}
	pubsub, err := dialRedis(ctx, clientOptions(opt, "pubsub"))
	if err != nil {
		queue.Close()
		return nil, err
	}

	return &RedisClients{Queue: queue, PubSub: pubsub}, nil
}

func clientOptions(base *redis.Options, role string) *redis.Options {
	opt := *base
	opt.ClientName = "emitra-" + role
	return &opt
}

func dialRedis(ctx context.Context, opt *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis (%s): %w", opt.ClientName, err)
	}
	return client, nil
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.PubSub.Close()
}
