package http

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/service"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
	"github.com/Swiftdaops/QuickClean/pkg/httputil"
)

// Hand-off modes a browser can request.
const (
	HandoffOpen = "open"
	HandoffCopy = "copy"
)

// BookingHandler handles HTTP requests for booking submission.
type BookingHandler struct {
	service *service.BookingService
	logger  *slog.Logger
}

// NewBookingHandler creates a new booking HTTP handler.
func NewBookingHandler(svc *service.BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ServiceRequest is one selected service, priced when it was picked.
type ServiceRequest struct {
	ServiceID string          `json:"serviceId" validate:"max=100"`
	Name      string          `json:"name" validate:"required,max=200"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// SubmitBookingRequest is the JSON request body of the booking form. Missing
// services, name and phone are reported by the booking rules, not here, so
// the customer sees the same messages in the same order.
type SubmitBookingRequest struct {
	Name     string           `json:"name" validate:"max=200"`
	Phone    string           `json:"phone" validate:"max=40"`
	Date     string           `json:"date" validate:"max=40"`
	Notes    string           `json:"notes" validate:"max=2000"`
	Store    string           `json:"store" validate:"max=200"`
	Services []ServiceRequest `json:"services" validate:"max=20,dive"`
	// Handoff is "copy" when the browser cannot open links, e.g. a popup
	// blocker was detected.
	Handoff string `json:"handoff" validate:"omitempty,oneof=open copy"`
}

func (req SubmitBookingRequest) toInput(userAgent string) (service.SubmitInput, error) {
	services := make([]domain.ServiceSelection, 0, len(req.Services))
	for _, s := range req.Services {
		if s.UnitPrice.IsNegative() {
			return service.SubmitInput{}, apperrors.InvalidInput("service price must not be negative")
		}
		services = append(services, domain.ServiceSelection{
			ServiceID: s.ServiceID,
			Name:      s.Name,
			UnitPrice: s.UnitPrice,
		})
	}
	return service.SubmitInput{
		BookingInput: domain.BookingInput{
			Name:     req.Name,
			Phone:    req.Phone,
			Date:     req.Date,
			Notes:    req.Notes,
			Store:    req.Store,
			Services: services,
		},
		UserAgent: userAgent,
	}, nil
}

// responseSink hands the recap back in the response body. Opening is
// refused when the browser asked for copy mode.
type responseSink struct {
	copyOnly bool
}

func (s responseSink) Open(string) error {
	if s.copyOnly {
		return service.ErrOpenBlocked
	}
	return nil
}

func (s responseSink) Copy(string) error {
	return nil
}

// --- Handlers ---

// Submit handles POST /api/v1/bookings
func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	var req SubmitBookingRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	// Reserved before the backend call so the hand-off mode cannot change
	// while the booking is in flight.
	sink := responseSink{copyOnly: req.Handoff == HandoffCopy}

	input, err := req.toInput(r.UserAgent())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Submit(r.Context(), sessionID, input, sink)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, res)
}
