// Package realtime carries per-order status events over Redis Pub/Sub.
//
// Every order has its own channel, order:<orderId>. Joining the channel is a
// SUBSCRIBE and leaving it is an UNSUBSCRIBE followed by closing the
// connection, both owned by a Subscription handle that must be closed on
// every exit path.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Swiftdaops/QuickClean/internal/domain"
)

// State is the informational connection state of a subscription.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Message is either a status event or a connection state change.
type Message struct {
	Event *domain.StatusEvent
	State State
}

// Subscription is a disposable handle on one order's channel. C is closed
// after Close returns or the subscribing context ends.
type Subscription interface {
	C() <-chan Message
	Close() error
}

// Subscriber opens subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, orderID string) (Subscription, error)
}

// Publisher pushes status events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.StatusEvent) error
}

// Channel returns the Pub/Sub channel of an order.
func Channel(orderID string) string {
	return "order:" + orderID
}

const (
	subscriptionBuffer = 16
	reconnectBackoff   = 500 * time.Millisecond
)

// Hub implements Subscriber and Publisher on Redis.
type Hub struct {
	client *redis.Client
	logger *slog.Logger
}

// NewHub creates a Redis-backed hub.
func NewHub(client *redis.Client, logger *slog.Logger) *Hub {
	return &Hub{client: client, logger: logger}
}

// Publish sends ev to its order's channel.
func (h *Hub) Publish(ctx context.Context, ev domain.StatusEvent) error {
	if ev.OrderID == "" {
		return errors.New("publish status event: order id is required")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	if err := h.client.Publish(ctx, Channel(ev.OrderID), data).Err(); err != nil {
		return fmt.Errorf("redis publish status event: %w", err)
	}
	return nil
}

// Subscribe joins the order's channel. The SUBSCRIBE is sent before Subscribe
// returns, so an event published afterwards is delivered.
func (h *Hub) Subscribe(ctx context.Context, orderID string) (Subscription, error) {
	if orderID == "" {
		return nil, errors.New("subscribe: order id is required")
	}

	channel := Channel(orderID)
	ps := h.client.Subscribe(ctx)
	if err := ps.Subscribe(ctx, channel); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &redisSubscription{
		ps:      ps,
		channel: channel,
		out:     make(chan Message, subscriptionBuffer),
		cancel:  cancel,
		logger:  h.logger.With(slog.String("channel", channel)),
	}
	// A blocked Receive does not watch the context; closing the connection
	// is what wakes it.
	context.AfterFunc(runCtx, func() { _ = s.Close() })
	go s.run(runCtx)
	return s, nil
}

type redisSubscription struct {
	ps      *redis.PubSub
	channel string
	out     chan Message
	cancel  context.CancelFunc
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *redisSubscription) C() <-chan Message {
	return s.out
}

// Close leaves the channel and releases the connection. It is safe to call
// more than once and from any goroutine.
func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.ps.Unsubscribe(ctx, s.channel); err != nil {
			s.logger.Debug("unsubscribe failed", slog.String("error", err.Error()))
		}
		s.closeErr = s.ps.Close()
	})
	return s.closeErr
}

func (s *redisSubscription) run(ctx context.Context) {
	defer close(s.out)
	defer func() { _ = s.Close() }()

	state := StateConnecting
	if !s.send(ctx, Message{State: state}) {
		return
	}

	for {
		msg, err := s.ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if state != StateReconnecting {
				state = StateReconnecting
				s.logger.Warn("order channel lost, reconnecting", slog.String("error", err.Error()))
				if !s.send(ctx, Message{State: state}) {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectBackoff):
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" && state != StateConnected {
				state = StateConnected
				if !s.send(ctx, Message{State: state}) {
					return
				}
			}
		case *redis.Message:
			var ev domain.StatusEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				s.logger.Warn("dropping malformed status event", slog.String("error", err.Error()))
				continue
			}
			if !s.send(ctx, Message{Event: &ev}) {
				return
			}
		}
	}
}

func (s *redisSubscription) send(ctx context.Context, m Message) bool {
	select {
	case s.out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}
