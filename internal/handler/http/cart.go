package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/service"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
	"github.com/Swiftdaops/QuickClean/pkg/httputil"
)

// maxImportBytes bounds deep-link import bodies.
const maxImportBytes = 256 << 10

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
type AddItemRequest struct {
	ProductID string          `json:"productId" validate:"required,max=100"`
	Name      string          `json:"name" validate:"max=500"`
	Image     string          `json:"image" validate:"omitempty,max=2048"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
	Store     string          `json:"store" validate:"max=200"`
}

// UpdateQuantityRequest is the JSON request body for changing a line's quantity.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// SetStoreRequest is the JSON request body for scoping the cart to a store.
type SetStoreRequest struct {
	Store string `json:"store" validate:"required,max=200"`
}

// importRequest carries a deep-link order, either URI-encoded JSON in
// "order" or the cart object itself.
type importRequest struct {
	Order string `json:"order"`
}

// --- Response DTOs ---

// CartResponse is the cart plus what the last operation did to it.
type CartResponse struct {
	Cart              *domain.Cart `json:"cart"`
	Persisted         bool         `json:"persisted"`
	ItemsDropped      bool         `json:"itemsDropped,omitempty"`
	Reconciled        bool         `json:"reconciled,omitempty"`
	Repriced          int          `json:"repriced,omitempty"`
	SuggestedServices []string     `json:"suggestedServices,omitempty"`
}

func newCartResponse(res *service.CartResult) CartResponse {
	return CartResponse{
		Cart:              res.Cart,
		Persisted:         res.Persisted(),
		ItemsDropped:      res.ItemsDropped,
		Reconciled:        res.Reconciled,
		Repriced:          res.Repriced,
		SuggestedServices: res.SuggestedServices,
	}
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.Load(r.Context(), sessionID)
	h.respond(w, r, res, err)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.Clear(r.Context(), sessionID)
	h.respond(w, r, res, err)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	var req AddItemRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	res, err := h.service.AddItem(r.Context(), sessionID, service.AddItemInput{
		ProductID: req.ProductID,
		Name:      req.Name,
		Image:     req.Image,
		UnitPrice: req.UnitPrice,
		Quantity:  quantity,
		Store:     req.Store,
	})
	h.respond(w, r, res, err)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	res, err := h.service.SetQuantity(r.Context(), sessionID, chi.URLParam(r, "productId"), *req.Quantity)
	h.respond(w, r, res, err)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.RemoveItem(r.Context(), sessionID, chi.URLParam(r, "productId"))
	h.respond(w, r, res, err)
}

// SetStore handles PUT /api/v1/cart/store
func (h *CartHandler) SetStore(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	var req SetStoreRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	res, err := h.service.SetStore(r.Context(), sessionID, req.Store)
	h.respond(w, r, res, err)
}

// Reconcile handles POST /api/v1/cart/reconcile
func (h *CartHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.Reconcile(r.Context(), sessionID)
	h.respond(w, r, res, err)
}

// Import handles POST /api/v1/cart/import
func (h *CartHandler) Import(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r, h.logger)
	if !ok {
		return
	}

	cart, err := parseImport(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Import(r.Context(), sessionID, cart)
	h.respond(w, r, res, err)
}

// parseImport accepts {"order": "<URI-encoded JSON>"} as produced by the
// storefront's ?order= links, or a cart object posted directly.
func parseImport(r *http.Request) (*domain.Cart, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxImportBytes))
	if err != nil {
		return nil, apperrors.InvalidInput("invalid request body")
	}

	payload := body
	var req importRequest
	if err := json.Unmarshal(body, &req); err == nil && strings.TrimSpace(req.Order) != "" {
		decoded, err := url.PathUnescape(req.Order)
		if err != nil {
			return nil, apperrors.InvalidInput("order is not valid URI-encoded JSON")
		}
		payload = []byte(decoded)
	}

	var cart domain.Cart
	if err := json.Unmarshal(payload, &cart); err != nil {
		return nil, apperrors.InvalidInput("order is not a valid cart")
	}
	return &cart, nil
}

func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request, res *service.CartResult, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(res))
}
