package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/service"
	"github.com/Swiftdaops/QuickClean/pkg/httputil"
	"github.com/Swiftdaops/QuickClean/pkg/pagination"
)

const sseHeartbeat = 15 * time.Second

// OrderHandler serves order history and live order status.
type OrderHandler struct {
	tracker  *service.TrackerService
	bookings *service.BookingService
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(tracker *service.TrackerService, bookings *service.BookingService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		tracker:  tracker,
		bookings: bookings,
		logger:   logger,
		now:      time.Now,
	}
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	receipts, total, err := h.bookings.Orders(r.Context(), sessionID, params.Offset, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, pagination.NewResult[domain.Receipt](receipts, total, params))
}

// LastOrder handles GET /api/v1/orders/last
func (h *OrderHandler) LastOrder(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	orderID, err := h.tracker.LastOrder(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	snap, err := h.tracker.Status(r.Context(), sessionID, orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, snap)
}

// GetStatus handles GET /api/v1/orders/{orderId}/status
func (h *OrderHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	snap, err := h.tracker.Status(r.Context(), sessionID, chi.URLParam(r, "orderId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, snap)
}

// --- Server-Sent Events ---

type connectionEvent struct {
	State string `json:"state"`
}

type statusEvent struct {
	Notification *service.Notification   `json:"notification"`
	Snapshot     *service.StatusSnapshot `json:"snapshot"`
}

// Events handles GET /api/v1/orders/{orderId}/events. The stream opens with
// a "snapshot" event, then carries "status" and "connection" events until
// the client goes away. A second "snapshot" is sent when the response
// window runs out so the widget can offer support.
func (h *OrderHandler) Events(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}
	ctx := r.Context()

	view, err := h.tracker.Open(ctx, sessionID, chi.URLParam(r, "orderId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer func() {
		if err := view.Close(); err != nil {
			h.logger.DebugContext(ctx, "failed to close order view",
				slog.String("order_id", view.OrderID()),
				slog.String("error", err.Error()),
			)
		}
	}()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v any) bool {
		if err := writeEvent(w, event, v); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send("snapshot", view.Snapshot(h.now())) {
		return
	}

	var expired <-chan time.Time
	if left := view.Countdown(h.now()); left > 0 {
		timer := time.NewTimer(left)
		defer timer.Stop()
		expired = timer.C
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-view.Updates():
			if !ok {
				return
			}
			var sent bool
			if u.Notification != nil {
				sent = send("status", statusEvent{Notification: u.Notification, Snapshot: view.Snapshot(h.now())})
			} else {
				sent = send("connection", connectionEvent{State: string(u.State)})
			}
			if !sent {
				return
			}
		case <-expired:
			expired = nil
			if !send("snapshot", view.Snapshot(h.now())) {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if rc.Flush() != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
