package domain

import (
	"context"
)

// EventBus distributes alert lifecycle events to interested consumers.
// The channel implementation serves a single process; NATS serves the
// distributed deployment.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic. The returned subscription
	// stops delivery when unsubscribed.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Ping reports bus health.
	Ping(ctx context.Context) error

	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is a single event on the bus.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription is an active topic subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// ScreenedEvent is the payload published on TopicTransactionScreened.
type ScreenedEvent struct {
	Transaction *Transaction  `json:"transaction"`
	Decision    FraudDecision `json:"decision"`
}

// Topics published by the screening pipeline.
const (
	TopicTransactionScreened = "kestrel.transaction.screened"
	TopicAlertCreated        = "kestrel.alert.created"
	TopicAlertResolved       = "kestrel.alert.resolved"
)
