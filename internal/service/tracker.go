package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/metrics"
	"github.com/Swiftdaops/QuickClean/internal/realtime"
	"github.com/Swiftdaops/QuickClean/internal/repository"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

const viewUpdateBuffer = 16

// BookingFetcher loads a booking by id.
type BookingFetcher interface {
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
}

// Notification is raised for every status change applied to a view.
type Notification struct {
	Message   string             `json:"message"`
	Status    domain.OrderStatus `json:"status"`
	UpdatedAt time.Time          `json:"updatedAt,omitzero"`
}

// Update is one change observed by an OrderView: either a connection state
// change or a status notification.
type Update struct {
	State        realtime.State
	Notification *Notification
}

// StatusSnapshot is the displayable state of a tracked order.
type StatusSnapshot struct {
	OrderID       string             `json:"orderId"`
	Status        domain.OrderStatus `json:"status"`
	StatusText    string             `json:"statusText"`
	Booking       *domain.Booking    `json:"booking,omitempty"`
	Deadline      time.Time          `json:"deadline"`
	Countdown     string             `json:"countdown"`
	SupportPrompt bool               `json:"supportPrompt"`
	Connection    realtime.State     `json:"connection,omitempty"`
	LastUpdatedAt time.Time          `json:"lastUpdatedAt,omitzero"`
}

// TrackerService opens live views on orders.
type TrackerService struct {
	fetcher    BookingFetcher
	subscriber realtime.Subscriber
	state      repository.ClientStateStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewTrackerService creates a new order status tracker.
func NewTrackerService(fetcher BookingFetcher, subscriber realtime.Subscriber, state repository.ClientStateStore, logger *slog.Logger) *TrackerService {
	return &TrackerService{
		fetcher:    fetcher,
		subscriber: subscriber,
		state:      state,
		logger:     logger,
		now:        time.Now,
	}
}

// Open subscribes to the order's channel, then fetches its current state.
// The subscription is released if the fetch fails. The returned view must
// be closed; it is also released when ctx ends.
func (t *TrackerService) Open(ctx context.Context, sessionID, orderID string) (*OrderView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	sub, err := t.subscriber.Subscribe(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("subscribe to order %s: %w", orderID, err)
	}

	booking, err := t.fetcher.GetBooking(ctx, orderID)
	if err != nil {
		if closeErr := sub.Close(); closeErr != nil {
			t.logger.DebugContext(ctx, "failed to release order subscription",
				slog.String("order_id", orderID),
				slog.String("error", closeErr.Error()),
			)
		}
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	t.rememberOrder(ctx, sessionID, orderID)

	v := &OrderView{
		orderID:  orderID,
		sub:      sub,
		logger:   t.logger.With(slog.String("order_id", orderID)),
		now:      t.now,
		booking:  booking,
		status:   booking.Status,
		deadline: booking.Deadline(),
		conn:     realtime.StateConnecting,
		updates:  make(chan Update, viewUpdateBuffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	metrics.OrderViewsActive.Inc()
	go v.run()

	return v, nil
}

// Resume re-opens the last order the session viewed.
func (t *TrackerService) Resume(ctx context.Context, sessionID string) (*OrderView, error) {
	orderID, err := t.LastOrder(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return t.Open(ctx, sessionID, orderID)
}

// LastOrder returns the last order id the session viewed or submitted.
func (t *TrackerService) LastOrder(ctx context.Context, sessionID string) (string, error) {
	orderID, err := t.state.GetLastOrder(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.NotFound("last order", "session")
		}
		return "", fmt.Errorf("get last order: %w", err)
	}
	return orderID, nil
}

// Status fetches an order once, without subscribing.
func (t *TrackerService) Status(ctx context.Context, sessionID, orderID string) (*StatusSnapshot, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	booking, err := t.fetcher.GetBooking(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	t.rememberOrder(ctx, sessionID, orderID)

	return newSnapshot(orderID, booking, booking.Status, booking.Deadline(), "", time.Time{}, t.now()), nil
}

func (t *TrackerService) rememberOrder(ctx context.Context, sessionID, orderID string) {
	if sessionID == "" {
		return
	}
	if err := t.state.SetLastOrder(ctx, sessionID, orderID); err != nil {
		t.logger.WarnContext(ctx, "failed to remember last order",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}

// OrderView is a live view on one order. Pushed events overwrite the status
// in arrival order; updatedAt is recorded but not compared.
type OrderView struct {
	orderID string
	sub     realtime.Subscription
	logger  *slog.Logger
	now     func() time.Time

	mu            sync.Mutex
	booking       *domain.Booking
	status        domain.OrderStatus
	deadline      time.Time
	conn          realtime.State
	lastUpdatedAt time.Time

	updates  chan Update
	done     chan struct{}
	finished chan struct{}

	stopOnce    sync.Once
	releaseOnce sync.Once
	releaseErr  error
}

// OrderID returns the tracked order id.
func (v *OrderView) OrderID() string {
	return v.orderID
}

// Updates delivers connection changes and status notifications. It is closed
// once the view stops. Updates are dropped when the reader falls behind.
func (v *OrderView) Updates() <-chan Update {
	return v.updates
}

// Status returns the current status.
func (v *OrderView) Status() domain.OrderStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Connection returns the current connection state.
func (v *OrderView) Connection() realtime.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn
}

// LastUpdatedAt returns the updatedAt of the last applied event.
func (v *OrderView) LastUpdatedAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastUpdatedAt
}

// Deadline is when the response window ends.
func (v *OrderView) Deadline() time.Time {
	return v.deadline
}

// Countdown returns the time left in the response window, never negative.
func (v *OrderView) Countdown(now time.Time) time.Duration {
	return domain.Countdown(v.deadline, now)
}

// CountdownText renders the countdown as m:ss.
func (v *OrderView) CountdownText(now time.Time) string {
	return domain.CountdownText(v.Countdown(now))
}

// SupportPrompt reports whether the customer should be offered support.
func (v *OrderView) SupportPrompt(now time.Time) bool {
	return v.Countdown(now) == 0
}

// Snapshot returns the displayable state at now.
func (v *OrderView) Snapshot(now time.Time) *StatusSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return newSnapshot(v.orderID, v.booking, v.status, v.deadline, v.conn, v.lastUpdatedAt, now)
}

// Close leaves the order channel and stops event handling. After Close
// returns no further event is applied. It is safe to call more than once.
func (v *OrderView) Close() error {
	v.stopOnce.Do(func() { close(v.done) })
	<-v.finished
	return v.release()
}

// Done is closed once the view stopped handling events.
func (v *OrderView) Done() <-chan struct{} {
	return v.finished
}

func (v *OrderView) release() error {
	v.releaseOnce.Do(func() {
		v.releaseErr = v.sub.Close()
		metrics.OrderViewsActive.Dec()
	})
	return v.releaseErr
}

func (v *OrderView) run() {
	defer close(v.finished)
	defer close(v.updates)
	defer func() { _ = v.release() }()

	for {
		select {
		case <-v.done:
			return
		case m, ok := <-v.sub.C():
			if !ok {
				return
			}
			v.handle(m)
		}
	}
}

func (v *OrderView) handle(m realtime.Message) {
	if m.State != "" {
		v.mu.Lock()
		v.conn = m.State
		v.mu.Unlock()
		v.emit(Update{State: m.State})
		return
	}
	if m.Event == nil {
		return
	}

	ev := *m.Event
	if ev.OrderID != v.orderID {
		metrics.StatusEventsApplied.WithLabelValues("ignored").Inc()
		return
	}
	if !ev.Status.Valid() {
		metrics.StatusEventsApplied.WithLabelValues("invalid").Inc()
		v.logger.Debug("ignoring unknown status", slog.String("status", string(ev.Status)))
		return
	}

	v.mu.Lock()
	if !ev.UpdatedAt.IsZero() && ev.UpdatedAt.Before(v.lastUpdatedAt) {
		metrics.StatusEventsApplied.WithLabelValues("out_of_order").Inc()
		v.logger.Debug("applying status event older than the last one",
			slog.Time("updated_at", ev.UpdatedAt),
			slog.Time("last_updated_at", v.lastUpdatedAt),
		)
	} else {
		metrics.StatusEventsApplied.WithLabelValues("applied").Inc()
	}
	v.status = ev.Status
	if !ev.UpdatedAt.IsZero() {
		v.lastUpdatedAt = ev.UpdatedAt
	}
	if v.booking != nil {
		b := *v.booking
		b.Status = ev.Status
		if !ev.UpdatedAt.IsZero() {
			b.UpdatedAt = ev.UpdatedAt
		}
		v.booking = &b
	}
	v.mu.Unlock()

	v.emit(Update{Notification: &Notification{
		Message:   domain.StatusMessage(ev.Status),
		Status:    ev.Status,
		UpdatedAt: ev.UpdatedAt,
	}})
}

func (v *OrderView) emit(u Update) {
	select {
	case v.updates <- u:
	default:
		v.logger.Debug("dropping view update, reader is behind")
	}
}

func newSnapshot(orderID string, booking *domain.Booking, status domain.OrderStatus, deadline time.Time, conn realtime.State, lastUpdatedAt, now time.Time) *StatusSnapshot {
	countdown := domain.Countdown(deadline, now)
	return &StatusSnapshot{
		OrderID:       orderID,
		Status:        status,
		StatusText:    status.Human(),
		Booking:       booking,
		Deadline:      deadline,
		Countdown:     domain.CountdownText(countdown),
		SupportPrompt: countdown == 0,
		Connection:    conn,
		LastUpdatedAt: lastUpdatedAt,
	}
}
