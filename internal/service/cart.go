package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/metrics"
	"github.com/Swiftdaops/QuickClean/internal/repository"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single line.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct lines in a cart.
	MaxItemsPerCart = 50
)

// Reasons attached to cart.cleared events.
const (
	ClearReasonCustomer    = "customer"
	ClearReasonStoreSwitch = "store_switch"
	ClearReasonBooked      = "booked"
)

// AddItemInput holds the product being added. The unit price is the price
// the customer saw; reconciliation corrects it later.
type AddItemInput struct {
	ProductID string
	Name      string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
	// Store, when set, scopes the cart before the item is added.
	Store string
}

// CartResult is the outcome of a cart operation. The in-memory cart is
// always returned; PersistErr reports a failed write to client storage.
type CartResult struct {
	Cart       *domain.Cart
	PersistErr error
	// ItemsDropped is set when a store switch cleared the cart.
	ItemsDropped bool
	// Reconciled and Repriced describe a price refresh, when one ran.
	Reconciled bool
	Repriced   int
	// SuggestedServices are service selections implied by the operation.
	SuggestedServices []string
}

// Persisted reports whether the cart reached client storage.
func (r *CartResult) Persisted() bool {
	return r.PersistErr == nil
}

// CartEvents receives cart lifecycle notifications.
type CartEvents interface {
	PublishCartCleared(ctx context.Context, sessionID, reason string) error
}

// CartService implements the cart store: one cart per session, persisted to
// the client state store after every mutation.
type CartService struct {
	store      repository.ClientStateStore
	reconciler *Reconciler
	events     CartEvents
	logger     *slog.Logger
	locks      *sessionLocks
}

// NewCartService creates a new cart service. events may be nil.
func NewCartService(store repository.ClientStateStore, reconciler *Reconciler, events CartEvents, logger *slog.Logger) *CartService {
	return &CartService{
		store:      store,
		reconciler: reconciler,
		events:     events,
		logger:     logger,
		locks:      newSessionLocks(),
	}
}

// Load returns the session's cart. A stored cart without line items counts
// as no cart and its key is removed. Totals are recomputed.
func (s *CartService) Load(ctx context.Context, sessionID string) (*CartResult, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart, stale := s.load(ctx, sessionID)
	res := &CartResult{Cart: cart}
	if stale {
		res.PersistErr = s.persist(ctx, sessionID, cart, "load")
	}
	return res, nil
}

// AddItem increments the quantity of an existing line or appends a new one
// with the product's current price.
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (*CartResult, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if strings.TrimSpace(input.ProductID) == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if input.Quantity < 1 {
		return nil, apperrors.InvalidInput("quantity must be at least 1")
	}
	if input.Quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}
	if input.UnitPrice.IsNegative() {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart, _ := s.load(ctx, sessionID)
	res := &CartResult{Cart: cart}

	if input.Store != "" {
		res.ItemsDropped = cart.SetStore(input.Store)
	}

	if existing, ok := cart.Find(input.ProductID); ok {
		if existing.Quantity+input.Quantity > MaxQuantityPerItem {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
	} else if len(cart.Items) >= MaxItemsPerCart {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Item"
	}
	cart.Add(domain.LineItem{
		ID:        input.ProductID,
		Name:      name,
		Image:     input.Image,
		UnitPrice: input.UnitPrice,
	}, input.Quantity)

	res.PersistErr = s.persist(ctx, sessionID, cart, "add_item")

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("product_id", input.ProductID),
		slog.Int("quantity", input.Quantity),
		slog.Int("line_count", len(cart.Items)),
	)
	if res.ItemsDropped {
		s.publishCleared(ctx, sessionID, ClearReasonStoreSwitch)
	}

	return res, nil
}

// SetQuantity changes a line's quantity. Zero removes the line.
func (s *CartService) SetQuantity(ctx context.Context, sessionID, productID string, quantity int) (*CartResult, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must not be negative")
	}
	if quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart, _ := s.load(ctx, sessionID)
	if !cart.SetQuantity(productID, quantity) {
		return nil, apperrors.NotFound("cart item", productID)
	}

	return &CartResult{
		Cart:       cart,
		PersistErr: s.persist(ctx, sessionID, cart, "set_quantity"),
	}, nil
}

// RemoveItem deletes a line. Removing the last line deletes the stored cart.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (*CartResult, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart, _ := s.load(ctx, sessionID)
	if !cart.Remove(productID) {
		return nil, apperrors.NotFound("cart item", productID)
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("product_id", productID),
		slog.Int("line_count", len(cart.Items)),
	)

	return &CartResult{
		Cart:       cart,
		PersistErr: s.persist(ctx, sessionID, cart, "remove_item"),
	}, nil
}

// SetStore scopes the cart to a store. Switching to a different store while
// items are present clears them.
func (s *CartService) SetStore(ctx context.Context, sessionID, store string) (*CartResult, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if strings.TrimSpace(store) == "" {
		return nil, apperrors.InvalidInput("store is required")
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart, _ := s.load(ctx, sessionID)
	res := &CartResult{Cart: cart}
	res.ItemsDropped = cart.SetStore(store)
	res.PersistErr = s.persist(ctx, sessionID, cart, "set_store")

	if res.ItemsDropped {
		s.logger.InfoContext(ctx, "store switched, cart cleared",
			slog.String("store", cart.StoreName),
		)
		s.publishCleared(ctx, sessionID, ClearReasonStoreSwitch)
	}

	return res, nil
}

// Clear deletes the stored cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) (*CartResult, error) {
	return s.clear(ctx, sessionID, ClearReasonCustomer)
}

func (s *CartService) clear(ctx context.Context, sessionID, reason string) (*CartResult, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart := &domain.Cart{}
	res := &CartResult{
		Cart:       cart,
		PersistErr: s.persist(ctx, sessionID, cart, "clear"),
	}
	s.publishCleared(ctx, sessionID, reason)
	return res, nil
}

// Reconcile refreshes the stored cart's prices from its store's catalog and
// re-persists it. Lookup failures leave the cart untouched.
func (s *CartService) Reconcile(ctx context.Context, sessionID string) (*CartResult, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart, stale := s.load(ctx, sessionID)
	if cart.IsEmpty() {
		res := &CartResult{Cart: cart}
		if stale {
			res.PersistErr = s.persist(ctx, sessionID, cart, "load")
		}
		return res, nil
	}

	return s.reconcileAndSave(ctx, sessionID, cart, TriggerRestore), nil
}

// Import replaces the session's cart with one carried in a deep link and
// reconciles it. A non-empty import suggests the Help Me Buy Pack. An empty
// import leaves the stored cart alone.
func (s *CartService) Import(ctx context.Context, sessionID string, imported *domain.Cart) (*CartResult, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if imported.IsEmpty() {
		return nil, apperrors.InvalidInput("order has no items")
	}
	if len(imported.Items) > MaxItemsPerCart {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	cart := imported.Clone()
	cart.StoreName = strings.TrimSpace(cart.StoreName)

	// Stored before the price refresh so a failed refresh still leaves it
	// restorable.
	persistErr := s.persist(ctx, sessionID, cart, "import")

	res := s.reconcileAndSave(ctx, sessionID, cart, TriggerImport)
	if !res.Reconciled {
		res.PersistErr = persistErr
	}
	res.SuggestedServices = []string{domain.HelpMeBuyPack}

	s.logger.InfoContext(ctx, "cart imported from deep link",
		slog.String("store", cart.StoreName),
		slog.Int("line_count", len(cart.Items)),
		slog.Bool("reconciled", res.Reconciled),
	)

	return res, nil
}

// ClearAfterBooking deletes the stored cart once its order was accepted.
func (s *CartService) ClearAfterBooking(ctx context.Context, sessionID string) error {
	res, err := s.clear(ctx, sessionID, ClearReasonBooked)
	if err != nil {
		return err
	}
	return res.PersistErr
}

// Snapshot returns the session's cart without modifying storage.
func (s *CartService) Snapshot(ctx context.Context, sessionID string) *domain.Cart {
	unlock := s.locks.lock(sessionID)
	defer unlock()
	cart, _ := s.load(ctx, sessionID)
	return cart
}

func (s *CartService) reconcileAndSave(ctx context.Context, sessionID string, cart *domain.Cart, trigger string) *CartResult {
	rec := s.reconciler.Reconcile(ctx, cart, trigger)
	res := &CartResult{
		Cart:       rec.Cart,
		Reconciled: rec.Reconciled,
		Repriced:   rec.Repriced,
	}
	if rec.Reconciled {
		res.PersistErr = s.persist(ctx, sessionID, rec.Cart, "reconcile")
	}
	return res
}

// load reads the stored cart. Missing or unreadable carts become an empty
// cart; stale reports an empty stored cart whose key should be removed.
func (s *CartService) load(ctx context.Context, sessionID string) (cart *domain.Cart, stale bool) {
	stored, err := s.store.GetCart(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to load cart, starting empty",
				slog.String("error", err.Error()),
			)
		}
		return &domain.Cart{}, false
	}
	if stored.IsEmpty() {
		s.logger.DebugContext(ctx, "removing stored cart without items")
		return &domain.Cart{}, true
	}
	return stored, false
}

// persist writes a non-empty cart or deletes an empty one. Failures are
// logged and returned, never fatal to the operation.
func (s *CartService) persist(ctx context.Context, sessionID string, cart *domain.Cart, op string) error {
	var err error
	if cart.IsEmpty() {
		err = s.store.DeleteCart(ctx, sessionID)
	} else {
		err = s.store.SaveCart(ctx, sessionID, cart)
	}
	if err != nil {
		metrics.CartPersistFailures.WithLabelValues(op).Inc()
		s.logger.WarnContext(ctx, "failed to persist cart",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

func (s *CartService) publishCleared(ctx context.Context, sessionID, reason string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCartCleared(ctx, sessionID, reason); err != nil {
		s.logger.WarnContext(ctx, "failed to publish cart.cleared event",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}
