// Package redisbus spreads venue invalidations between service instances
// over Redis pub/sub. Each instance keeps its own venue cache; an
// invalidation tells the others to refetch.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/gigbook/pkg/logger"
	"github.com/okian/gigbook/pkg/metrics"
)

const defaultChannel = "gigbook:venue-invalidations"

// Message is the wire payload of one invalidation.
type Message struct {
	VenueID string `json:"venue_id"`
	Origin  string `json:"origin"`
}

// Handler receives venue ids invalidated by other instances.
type Handler func(ctx context.Context, venueID string)

// Bus publishes and receives venue invalidations.
type Bus struct {
	client  *redis.Client
	channel string
	origin  string
	logger  logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// New creates a bus on client. Messages published by this bus are ignored
// by its own subscription.
func New(client *redis.Client, opts ...Option) *Bus {
	b := &Bus{
		client:  client,
		channel: defaultChannel,
		origin:  uuid.NewString(),
		logger:  logger.Get().Named("redisbus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Origin returns the id stamped on messages from this bus.
func (b *Bus) Origin() string { return b.origin }

// Publish announces that venueID changed.
func (b *Bus) Publish(ctx context.Context, venueID string) error {
	payload, err := encode(Message{VenueID: venueID, Origin: b.origin})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		metrics.RecordPublish("redis", "error")
		return fmt.Errorf("publish invalidation for %s: %w", venueID, err)
	}
	metrics.RecordPublish("redis", "ok")
	return nil
}

// Subscribe delivers invalidations from other instances to h until ctx is
// done or Close is called.
func (b *Bus) Subscribe(ctx context.Context, h Handler) error {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.pubsub = ps
	b.mu.Unlock()

	ch := ps.Channel()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.handle(ctx, msg.Payload, h)
			}
		}
	}()
	return nil
}

func (b *Bus) handle(ctx context.Context, payload string, h Handler) {
	m, err := decode(payload)
	if err != nil {
		b.logger.Warn(ctx, "dropping malformed invalidation", logger.Error(err))
		metrics.RecordErrorByComponent("redisbus", "decode")
		return
	}
	if m.Origin == b.origin || m.VenueID == "" {
		return
	}
	h(ctx, m.VenueID)
}

// Close ends the subscription, if any, and waits for the reader to exit.
// The client itself is owned by the caller.
func (b *Bus) Close() error {
	b.mu.Lock()
	ps := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	var err error
	if ps != nil {
		err = ps.Close()
	}
	b.wg.Wait()
	return err
}

func encode(m Message) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode invalidation: %w", err)
	}
	return string(raw), nil
}

func decode(payload string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Message{}, fmt.Errorf("decode invalidation: %w", err)
	}
	return m, nil
}
