package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	pkgkafka "github.com/Swiftdaops/QuickClean/pkg/kafka"
	"github.com/Swiftdaops/QuickClean/pkg/redact"
)

// Kafka topics for storefront events.
var (
	TopicBookingSubmitted = pkgkafka.Topic("storefront", "booking.submitted")
	TopicCartCleared      = pkgkafka.Topic("storefront", "cart.cleared")
)

// Event types carried in the envelope.
const (
	EventTypeBookingSubmitted = "storefront.booking.submitted"
	EventTypeCartCleared      = "storefront.cart.cleared"
)

// Aggregate types.
const (
	AggregateTypeBooking = "booking"
	AggregateTypeSession = "session"
)

// SourceStorefront identifies events originating from the storefront.
const SourceStorefront = "storefront"

// BookingSubmittedData is the payload for a booking.submitted event. The
// customer phone is masked; the operator receives it through the hand-off.
type BookingSubmittedData struct {
	OrderID       string          `json:"order_id"`
	ClientID      string          `json:"client_id"`
	Store         string          `json:"store,omitempty"`
	Services      []string        `json:"services"`
	ItemCount     int             `json:"item_count"`
	ItemsTotal    decimal.Decimal `json:"items_total"`
	ServicesTotal decimal.Decimal `json:"services_total"`
	Total         decimal.Decimal `json:"total"`
	Phone         string          `json:"phone"`
	Date          string          `json:"date,omitempty"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// Producer publishes storefront events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the storefront.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishBookingSubmitted publishes a booking.submitted event.
func (p *Producer) PublishBookingSubmitted(ctx context.Context, orderID string, req *domain.BookingRequest) error {
	services := make([]string, len(req.Services))
	for i, s := range req.Services {
		services[i] = s.Service
	}

	itemCount := 0
	for _, it := range req.Items {
		itemCount += it.Quantity
	}

	data := BookingSubmittedData{
		OrderID:       orderID,
		ClientID:      req.CustomerCID,
		Store:         req.Store,
		Services:      services,
		ItemCount:     itemCount,
		ItemsTotal:    req.OrderSummary.ItemsTotal,
		ServicesTotal: req.OrderSummary.ServicesTotal,
		Total:         req.OrderSummary.Total,
		Phone:         redact.Phone(req.Phone),
		Date:          req.Date,
	}

	event, err := pkgkafka.NewEvent(EventTypeBookingSubmitted, orderID, AggregateTypeBooking, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create booking.submitted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicBookingSubmitted, event); err != nil {
		return fmt.Errorf("publish booking.submitted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published booking.submitted event",
		slog.String("order_id", orderID),
		slog.String("client_id", req.CustomerCID),
	)

	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	data := CartClearedData{
		SessionID: sessionID,
		Reason:    reason,
	}

	event, err := pkgkafka.NewEvent(EventTypeCartCleared, sessionID, AggregateTypeSession, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("reason", reason),
	)

	return nil
}
