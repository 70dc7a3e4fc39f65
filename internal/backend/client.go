package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
	"github.com/Swiftdaops/QuickClean/pkg/httpclient"
)

const (
	serviceName  = "backend"
	maxBodyBytes = 4 << 20
)

// MsgUnavailable is reported while the circuit breaker is open.
const MsgUnavailable = "QuickClean is temporarily unavailable, please try again shortly"

// Client talks to the QuickClean backend API.
type Client struct {
	baseURL string
	http    *httpclient.CircuitBreakerClient
	logger  *slog.Logger
}

// New creates a backend client. Requests rejected by an open breaker are
// answered locally with a 503 so callers see one error shape.
func New(baseURL string, cb *httpclient.CircuitBreakerClient, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    cb.WithFallback(unavailableFallback),
		logger:  logger,
	}
}

func unavailableFallback(_ context.Context, _ error) (*http.Response, error) {
	body, _ := json.Marshal(map[string]string{"message": MsgUnavailable})
	return &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, nil
}

// ListStores returns every store. The backend answers with a bare array or a
// {"stores": [...]} object, and older deployments list names only.
func (c *Client) ListStores(ctx context.Context) ([]domain.Store, error) {
	body, err := c.get(ctx, "/api/stores")
	if err != nil {
		return nil, err
	}

	raw, err := unwrapList(body, "stores")
	if err != nil {
		return nil, fmt.Errorf("decode stores: %w", err)
	}

	stores := make([]domain.Store, 0, len(raw))
	for _, r := range raw {
		var name string
		if json.Unmarshal(r, &name) == nil {
			stores = append(stores, domain.Store{Name: name})
			continue
		}
		var w storeWire
		if err := json.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("decode store: %w", err)
		}
		stores = append(stores, w.toDomain())
	}
	return stores, nil
}

// ListProducts returns a store's current catalog.
func (c *Client) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	if storeID == "" {
		return nil, apperrors.InvalidInput("store id is required")
	}

	body, err := c.get(ctx, "/api/stores/"+url.PathEscape(storeID)+"/products")
	if err != nil {
		return nil, err
	}

	raw, err := unwrapList(body, "products")
	if err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(raw))
	for _, r := range raw {
		var w productWire
		if err := json.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		p := w.toDomain()
		if p.StoreID == "" {
			p.StoreID = storeID
		}
		products = append(products, p)
	}
	return products, nil
}

// ListServices returns the bookable services.
func (c *Client) ListServices(ctx context.Context) ([]domain.ServiceOffering, error) {
	body, err := c.get(ctx, "/api/services")
	if err != nil {
		return nil, err
	}

	raw, err := unwrapList(body, "services")
	if err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}

	services := make([]domain.ServiceOffering, 0, len(raw))
	for _, r := range raw {
		var w serviceWire
		if err := json.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("decode service: %w", err)
		}
		services = append(services, w.toDomain())
	}
	return services, nil
}

// OperatorContact returns the operator's WhatsApp handle from the public
// settings. An empty string means none is configured.
func (c *Client) OperatorContact(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/api/settings")
	if err != nil {
		return "", err
	}

	var s struct {
		WhatsApp string `json:"whatsapp"`
	}
	if err := json.Unmarshal(body, &s); err != nil {
		return "", fmt.Errorf("decode settings: %w", err)
	}
	return strings.TrimSpace(s.WhatsApp), nil
}

// CreateBooking submits an order and returns the new booking id, which may be
// empty when the backend does not echo one.
//
// A failure carrying a backend message is returned as an AppError with that
// message verbatim. A 2xx body with an "error" field is a failure too.
func (c *Client) CreateBooking(ctx context.Context, req *domain.BookingRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal booking: %w", err)
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/api/bookings", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("post booking: %w", apperrors.ServiceUnavailable("", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", httpclient.ParseResponseError(resp, serviceName)
	}

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}
	if httpclient.HasErrorField(body) {
		return "", apperrors.Upstream(httpclient.ErrorMessage(body))
	}

	id := extractBookingID(body)
	if id == "" {
		c.logger.WarnContext(ctx, "booking created without an id in the response")
	}
	return id, nil
}

// GetBooking fetches one booking for status tracking.
func (c *Client) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	body, err := c.get(ctx, "/api/bookings/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Booking *bookingWire `json:"booking"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode booking: %w", err)
	}
	if envelope.Booking == nil {
		return nil, apperrors.NotFound("booking", id)
	}

	b := envelope.Booking.toDomain()
	if b.ID == "" {
		b.ID = id
	}
	return b, nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/api/settings")
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.http.Get(ctx, c.baseURL+path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, apperrors.ServiceUnavailable("", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	return readBody(resp)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	return body, nil
}

// unwrapList accepts a bare JSON array or an object holding the array under key.
func unwrapList(body []byte, key string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		inner, ok := obj[key]
		if !ok {
			return nil, nil
		}
		trimmed = inner
	}

	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// extractBookingID looks in booking._id, bookings[0]._id, _id and id, in
// that order.
func extractBookingID(body []byte) string {
	var r struct {
		Booking *struct {
			ID string `json:"_id"`
		} `json:"booking"`
		Bookings []struct {
			ID string `json:"_id"`
		} `json:"bookings"`
		UnderscoreID string `json:"_id"`
		ID           string `json:"id"`
	}
	if json.Unmarshal(body, &r) != nil {
		return ""
	}

	switch {
	case r.Booking != nil && r.Booking.ID != "":
		return r.Booking.ID
	case len(r.Bookings) > 0 && r.Bookings[0].ID != "":
		return r.Bookings[0].ID
	case r.UnderscoreID != "":
		return r.UnderscoreID
	default:
		return r.ID
	}
}
