// Package broker publishes booking transitions to RabbitMQ for downstream
// confirmation and payment consumers.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/gigbook/internal/domain/model"
	"github.com/okian/gigbook/pkg/metrics"
)

const (
	defaultExchange = "gigbook.bookings"
	// RoutingTransitioned is the routing key of TransitionEvent messages.
	RoutingTransitioned = "booking.transitioned"
)

// TransitionEvent is published after a booking transition is committed.
type TransitionEvent struct {
	BookingID  string              `json:"booking_id"`
	EventID    string              `json:"event_id"`
	VenueID    string              `json:"venue_id,omitempty"`
	MusicianID string              `json:"musician_id"`
	Action     string              `json:"action"`
	From       model.BookingStatus `json:"from"`
	To         model.BookingStatus `json:"to"`
	At         time.Time           `json:"at"`
}

// NewTransitionEvent builds the event for a committed change from before to after.
func NewTransitionEvent(action string, before, after model.Booking) TransitionEvent {
	return TransitionEvent{
		BookingID:  after.ID,
		EventID:    after.EventID,
		VenueID:    after.VenueID,
		MusicianID: after.MusicianID,
		Action:     action,
		From:       before.Status,
		To:         after.Status,
		At:         after.UpdatedAt,
	}
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends TransitionEvents to a topic exchange.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	now      func() time.Time
}

// Dial connects to url, opens a channel and declares the durable topic
// exchange.
func Dial(url string, opts ...Option) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p := newPublisher(ch, opts...)
	p.conn = conn
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	return p, nil
}

func newPublisher(ch channel, opts ...Option) *Publisher {
	p := &Publisher{
		ch:       ch,
		exchange: defaultExchange,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishTransition sends ev as a persistent JSON message.
func (p *Publisher) PublishTransition(ctx context.Context, ev TransitionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.BookingID + ":" + string(ev.To),
		Timestamp:    p.now(),
		Type:         RoutingTransitioned,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingTransitioned, false, false, msg); err != nil {
		metrics.RecordPublish("amqp", "error")
		return fmt.Errorf("publish transition %s: %w", ev.BookingID, err)
	}
	metrics.RecordPublish("amqp", "ok")
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
