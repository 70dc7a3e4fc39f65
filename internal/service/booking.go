package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/metrics"
	"github.com/Swiftdaops/QuickClean/internal/repository"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
	"github.com/Swiftdaops/QuickClean/pkg/redact"
)

// ClientIDPrefix starts every generated client id.
const ClientIDPrefix = "cid_"

// ErrOpenBlocked is returned by a HandoffSink that cannot open links.
var ErrOpenBlocked = errors.New("handoff: opening links is blocked")

// HandoffSink is the output channel for the operator hand-off. The caller
// reserves it before submission starts; Open is tried first and Copy is the
// fallback.
type HandoffSink interface {
	Open(url string) error
	Copy(text string) error
}

// BookingBackend is the write side of the booking backend.
type BookingBackend interface {
	CreateBooking(ctx context.Context, req *domain.BookingRequest) (string, error)
	OperatorContact(ctx context.Context) (string, error)
}

// BookingEvents receives accepted bookings.
type BookingEvents interface {
	PublishBookingSubmitted(ctx context.Context, orderID string, req *domain.BookingRequest) error
}

// SubmitInput is a booking form submission.
type SubmitInput struct {
	domain.BookingInput
	UserAgent string
}

// BookingResult acknowledges an accepted booking.
type BookingResult struct {
	OrderID   string              `json:"orderId"`
	Summary   domain.OrderSummary `json:"summary"`
	Handoff   domain.Handoff      `json:"handoff"`
	Message   string              `json:"message"`
	Notice    string              `json:"notice,omitempty"`
	ClearForm bool                `json:"clearForm"`
}

// BookingService submits bookings and hands the recap to the operator.
type BookingService struct {
	backend      BookingBackend
	carts        *CartService
	state        repository.ClientStateStore
	receipts     repository.ReceiptRepository
	events       BookingEvents
	adminContact string
	logger       *slog.Logger
	now          func() time.Time
}

// BookingDeps groups the optional collaborators of BookingService.
type BookingDeps struct {
	Receipts     repository.ReceiptRepository
	Events       BookingEvents
	AdminContact string
}

// NewBookingService creates a new booking service.
func NewBookingService(backend BookingBackend, carts *CartService, state repository.ClientStateStore, deps BookingDeps, logger *slog.Logger) *BookingService {
	return &BookingService{
		backend:      backend,
		carts:        carts,
		state:        state,
		receipts:     deps.Receipts,
		events:       deps.Events,
		adminContact: strings.TrimSpace(deps.AdminContact),
		logger:       logger,
		now:          time.Now,
	}
}

// Submit validates the form, creates the booking and delivers the hand-off
// through sink. Validation failures never reach the backend. On failure no
// client state is touched.
func (s *BookingService) Submit(ctx context.Context, sessionID string, in SubmitInput, sink HandoffSink) (*BookingResult, error) {
	if err := domain.ValidateBooking(in.BookingInput); err != nil {
		metrics.BookingsTotal.WithLabelValues(metrics.BookingInvalid).Inc()
		return nil, err
	}
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if sink == nil {
		return nil, errors.New("submit booking: handoff sink is required")
	}

	cart := s.carts.Snapshot(ctx, sessionID)
	clientID := s.clientID(ctx, sessionID)
	req := domain.NewBookingRequest(in.BookingInput, cart, clientID)

	orderID, err := s.backend.CreateBooking(ctx, req)
	if err != nil {
		metrics.BookingsTotal.WithLabelValues(metrics.BookingFailed).Inc()
		s.logger.WarnContext(ctx, "booking submission failed",
			redact.PhoneAttr("phone", req.Phone),
			slog.String("error", err.Error()),
		)
		return nil, bookingFailure(err)
	}
	metrics.BookingsTotal.WithLabelValues(metrics.BookingSubmitted).Inc()

	s.logger.InfoContext(ctx, "booking submitted",
		slog.String("order_id", orderID),
		slog.String("client_id", clientID),
		slog.String("total", req.OrderSummary.Total.String()),
		redact.PhoneAttr("phone", req.Phone),
	)

	recap := domain.NewRecap(req, orderID).Text()
	handoff := domain.NewHandoff(s.operatorContact(ctx), recap, in.UserAgent)
	res := &BookingResult{
		OrderID:   orderID,
		Summary:   req.OrderSummary,
		Message:   domain.MsgBookingCreated,
		ClearForm: true,
	}
	s.deliver(ctx, sink, &handoff)
	if handoff.Copied {
		res.Notice = domain.MsgRecapCopied
	}
	res.Handoff = handoff

	s.afterAccepted(ctx, sessionID, orderID, req)
	return res, nil
}

// deliver opens the hand-off link, falling back to copying the recap.
func (s *BookingService) deliver(ctx context.Context, sink HandoffSink, h *domain.Handoff) {
	err := sink.Open(h.URL)
	if err == nil {
		h.Opened = true
		metrics.HandoffsTotal.WithLabelValues("opened").Inc()
		return
	}
	s.logger.DebugContext(ctx, "handoff link not opened, copying recap",
		slog.String("error", err.Error()),
	)

	if err := sink.Copy(h.Message); err != nil {
		metrics.HandoffsTotal.WithLabelValues("none").Inc()
		s.logger.DebugContext(ctx, "handoff recap copy failed",
			slog.String("error", err.Error()),
		)
		return
	}
	h.Copied = true
	metrics.HandoffsTotal.WithLabelValues("copied").Inc()
}

// afterAccepted clears the cart and records the order. Each step is best
// effort; the booking already exists.
func (s *BookingService) afterAccepted(ctx context.Context, sessionID, orderID string, req *domain.BookingRequest) {
	if err := s.carts.ClearAfterBooking(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear cart after booking",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	if orderID == "" {
		return
	}

	if err := s.state.SetLastOrder(ctx, sessionID, orderID); err != nil {
		s.logger.WarnContext(ctx, "failed to remember last order",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	if s.receipts != nil {
		if err := s.receipts.Create(ctx, domain.NewReceipt(orderID, req, s.now())); err != nil {
			s.logger.WarnContext(ctx, "failed to record receipt",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.events != nil {
		if err := s.events.PublishBookingSubmitted(ctx, orderID, req); err != nil {
			s.logger.WarnContext(ctx, "failed to publish booking.submitted event",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// clientID returns the session's stable client id, creating one on first use.
// A storage failure falls back to a fresh id for this submission only.
func (s *BookingService) clientID(ctx context.Context, sessionID string) string {
	candidate := ClientIDPrefix + uuid.NewString()
	id, err := s.state.GetOrCreateClientID(ctx, sessionID, candidate)
	if err != nil || id == "" {
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load client id, using a fresh one",
				slog.String("error", err.Error()),
			)
		}
		return candidate
	}
	return id
}

// ClientID returns the session's client id, creating one on first use.
func (s *BookingService) ClientID(ctx context.Context, sessionID string) (string, error) {
	return s.state.GetOrCreateClientID(ctx, sessionID, ClientIDPrefix+uuid.NewString())
}

// operatorContact resolves the operator's WhatsApp number: configured value,
// then backend settings, then the built-in fallback.
func (s *BookingService) operatorContact(ctx context.Context) string {
	if s.adminContact != "" {
		return s.adminContact
	}
	contact, err := s.backend.OperatorContact(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "operator contact lookup failed, using fallback",
			slog.String("error", err.Error()),
		)
		return domain.FallbackOperatorContact
	}
	if contact == "" {
		return domain.FallbackOperatorContact
	}
	return contact
}

// bookingFailure keeps the backend's message and status when it sent one,
// and reports "Booking failed" otherwise.
func bookingFailure(err error) error {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	code := "BOOKING_FAILED"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		code = appErr.Code
	}
	return &apperrors.AppError{
		Code:    code,
		Message: apperrors.Message(err, domain.MsgBookingFailed),
		Status:  status,
		Err:     err,
	}
}

// Orders lists the receipts recorded for the session's client id, newest
// first. Without a receipt ledger the list is empty.
func (s *BookingService) Orders(ctx context.Context, sessionID string, offset, limit int) ([]domain.Receipt, int, error) {
	if s.receipts == nil {
		return nil, 0, nil
	}
	clientID, err := s.ClientID(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("get client id: %w", err)
	}
	receipts, total, err := s.receipts.ListByClient(ctx, clientID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, total, nil
}
