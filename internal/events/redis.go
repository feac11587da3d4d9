package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisPrefix = "mdsync:"

// RedisBroker fans notifications out to every instance through Redis Pub/Sub
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker connects to Redis and verifies the connection
func NewRedisBroker(ctx context.Context, addr, password string, db int) (*RedisBroker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisBroker{rdb: rdb}, nil
}

// Publish sends an empty message on the topic's channel
func (b *RedisBroker) Publish(ctx context.Context, topic string) error {
	if err := b.rdb.Publish(ctx, redisPrefix+topic, "").Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe listens on the topic's channel until the subscription is closed
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, redisPrefix+topic)
	// Wait for the confirmation so no publish after Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe %s: %w", topic, err)
	}

	done := make(chan struct{})
	sub := newSubscription(topic, func() {
		close(done)
		if err := pubsub.Close(); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Failed to close redis subscription")
		}
	})

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				sub.notify()
			}
		}
	}()

	return sub, nil
}

// Close closes the Redis client
func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
