package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/realtime"
	pkgkafka "github.com/Swiftdaops/QuickClean/pkg/kafka"
)

// Status events consumed from the booking backend.
var TopicBookingStatusUpdated = pkgkafka.Topic("booking", "status.updated")

// ConsumerGroupID is the consumer group of the status relay.
const ConsumerGroupID = "storefront-status-relay"

// statusPayload accepts both the storefront wire names and the snake_case
// names the backend uses on Kafka.
type statusPayload struct {
	OrderID        string             `json:"orderId"`
	OrderIDSnake   string             `json:"order_id"`
	BookingID      string             `json:"booking_id"`
	Status         domain.OrderStatus `json:"status"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	UpdatedAtSnake time.Time          `json:"updated_at"`
}

// StatusRelay forwards booking status changes from Kafka to the per-order
// real-time channels.
type StatusRelay struct {
	publisher realtime.Publisher
	logger    *slog.Logger
}

// NewStatusRelay creates a new status relay.
func NewStatusRelay(publisher realtime.Publisher, logger *slog.Logger) *StatusRelay {
	return &StatusRelay{
		publisher: publisher,
		logger:    logger,
	}
}

// Handle decodes a status event and publishes it on the order's channel.
// Undecodable or invalid events are logged and acknowledged so they do not
// block the partition; publish failures are returned for retry.
func (r *StatusRelay) Handle(ctx context.Context, event *pkgkafka.Event) error {
	var p statusPayload
	if err := event.UnmarshalData(&p); err != nil {
		r.logger.WarnContext(ctx, "dropping undecodable status event",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	ev := domain.StatusEvent{
		OrderID:   firstNonEmpty(p.OrderID, p.OrderIDSnake, p.BookingID, event.AggregateID),
		Status:    p.Status,
		UpdatedAt: p.UpdatedAt,
	}
	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = p.UpdatedAtSnake
	}
	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = event.Timestamp
	}

	if ev.OrderID == "" || !ev.Status.Valid() {
		r.logger.WarnContext(ctx, "dropping invalid status event",
			slog.String("event_id", event.EventID),
			slog.String("order_id", ev.OrderID),
			slog.String("status", string(ev.Status)),
		)
		return nil
	}

	if err := r.publisher.Publish(ctx, ev); err != nil {
		return fmt.Errorf("relay status event %s: %w", event.EventID, err)
	}

	r.logger.DebugContext(ctx, "relayed status event",
		slog.String("order_id", ev.OrderID),
		slog.String("status", string(ev.Status)),
	)
	return nil
}

// NewStatusConsumer creates the Kafka consumer feeding the relay. Redelivered
// events are skipped through the idempotency store.
func NewStatusConsumer(brokers []string, topic string, relay *StatusRelay, store pkgkafka.IdempotencyStore, logger *slog.Logger) *pkgkafka.Consumer {
	if topic == "" {
		topic = TopicBookingStatusUpdated
	}
	cfg := pkgkafka.ConsumerConfig{
		Brokers:  brokers,
		GroupID:  ConsumerGroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	handler := pkgkafka.IdempotentHandler(store, relay.Handle, logger)
	return pkgkafka.NewConsumer(cfg, handler, logger)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
