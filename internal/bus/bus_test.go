package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// collector gathers delivered messages for assertions.
type collector struct {
	mu   sync.Mutex
	msgs []*domain.Message
	ch   chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 100)}
}

func (c *collector) handle(ctx context.Context, msg *domain.Message) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T, n int) []*domain.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages", n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.Message(nil), c.msgs...)
}

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()
	c := newCollector()

	sub, err := b.Subscribe(ctx, domain.TopicTransactionScreened, c.handle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Topic() != domain.TopicTransactionScreened {
		t.Errorf("unexpected topic %s", sub.Topic())
	}

	if err := b.Publish(ctx, domain.TopicTransactionScreened, []byte(`{"n":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Publish(ctx, domain.TopicTransactionScreened, []byte(`{"n":2}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := c.wait(t, 2)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Payload) != `{"n":1}` {
		t.Errorf("unexpected payload %s", msgs[0].Payload)
	}
	if msgs[0].ID == "" || msgs[0].ID == msgs[1].ID {
		t.Error("messages must carry distinct ids")
	}
	if msgs[0].Topic != domain.TopicTransactionScreened {
		t.Errorf("unexpected message topic %s", msgs[0].Topic)
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()
	alerts := newCollector()

	if _, err := b.Subscribe(ctx, domain.TopicAlertCreated, alerts.handle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = b.Publish(ctx, domain.TopicTransactionScreened, []byte("screened"))
	_ = b.Publish(ctx, domain.TopicAlertCreated, []byte("alert"))

	msgs := alerts.wait(t, 1)
	if len(msgs) != 1 || string(msgs[0].Payload) != "alert" {
		t.Fatalf("expected only the alert message, got %v", msgs)
	}
}

func TestChannelBusFanout(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()
	first := newCollector()
	second := newCollector()

	if _, err := b.Subscribe(ctx, domain.TopicAlertCreated, first.handle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.Subscribe(ctx, domain.TopicAlertCreated, second.handle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = b.Publish(ctx, domain.TopicAlertCreated, []byte("alert"))

	first.wait(t, 1)
	second.wait(t, 1)
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()
	c := newCollector()

	sub, err := b.Subscribe(ctx, domain.TopicAlertCreated, c.handle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = b.Publish(ctx, domain.TopicAlertCreated, []byte("late"))

	select {
	case <-c.ch:
		t.Error("unsubscribed handler must not receive messages")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	if err := b.Ping(ctx); err != nil {
		t.Fatalf("open bus must report healthy: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("closed bus must fail ping")
	}
	if err := b.Publish(ctx, domain.TopicAlertCreated, []byte("x")); err == nil {
		t.Error("publish on a closed bus must fail")
	}
	if _, err := b.Subscribe(ctx, domain.TopicAlertCreated, nil); err == nil {
		t.Error("subscribe on a closed bus must fail")
	}

	// Close is idempotent.
	if err := b.Close(); err != nil {
		t.Errorf("second close must succeed: %v", err)
	}
}

func TestNATSErrorHandlerNilSubscription(t *testing.T) {
	// Connection-level async errors arrive without a subscription; the
	// handler must not dereference it.
	natsErrorHandler(nil, nil, errors.New("slow consumer"))
}

func TestNewBusFactory(t *testing.T) {
	t.Run("channel default", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer b.Close()
		if _, ok := b.(*ChannelBus); !ok {
			t.Errorf("expected channel bus, got %T", b)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected an error for an unsupported bus type")
		}
	})
}
