package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/metrics"
	"github.com/Swiftdaops/QuickClean/pkg/slug"
)

// sharedFetchTimeout bounds a catalog fetch shared by concurrent reconciliations.
const sharedFetchTimeout = 10 * time.Second

// Reconciliation triggers.
const (
	TriggerRestore = "restore"
	TriggerImport  = "import"
)

// Catalog is the read side of the booking backend the storefront needs.
type Catalog interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	ListServices(ctx context.Context) ([]domain.ServiceOffering, error)
}

// ReconcileResult describes one reconciliation attempt.
type ReconcileResult struct {
	// Cart is the reconciled cart, or the input cart when nothing was applied.
	Cart *domain.Cart
	// Reconciled is true when catalog prices were applied.
	Reconciled bool
	// Repriced counts lines whose unit price changed.
	Repriced int
	// Store is the catalog store the cart resolved to.
	Store *domain.Store
	// Outcome is one of the metrics.Reconcile* values.
	Outcome string
}

// Reconciler refreshes cached cart prices from the store catalog. It fails
// open: any lookup failure leaves the cart exactly as it was.
type Reconciler struct {
	catalog Catalog
	group   singleflight.Group
	logger  *slog.Logger
}

// NewReconciler creates a new price reconciler.
func NewReconciler(catalog Catalog, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		catalog: catalog,
		logger:  logger,
	}
}

// Reconcile resolves the cart's store, fetches its catalog and replaces the
// unit price of every matching line. Unmatched lines keep their cached price.
// The input cart is never modified.
func (r *Reconciler) Reconcile(ctx context.Context, cart *domain.Cart, trigger string) ReconcileResult {
	res := r.reconcile(ctx, cart)
	metrics.ReconciliationsTotal.WithLabelValues(trigger, res.Outcome).Inc()
	if res.Repriced > 0 {
		metrics.RepricedLines.Add(float64(res.Repriced))
	}
	return res
}

func (r *Reconciler) reconcile(ctx context.Context, cart *domain.Cart) ReconcileResult {
	unchanged := ReconcileResult{Cart: cart}

	if cart.IsEmpty() {
		unchanged.Outcome = metrics.ReconcileEmpty
		return unchanged
	}

	store, err := r.ResolveStore(ctx, cart.StoreName)
	if err != nil {
		r.logger.WarnContext(ctx, "price reconciliation skipped: store lookup failed",
			slog.String("store", cart.StoreName),
			slog.String("error", err.Error()),
		)
		unchanged.Outcome = metrics.ReconcileFetchError
		return unchanged
	}
	if store == nil {
		r.logger.DebugContext(ctx, "price reconciliation skipped: store not resolved",
			slog.String("store", cart.StoreName),
		)
		unchanged.Outcome = metrics.ReconcileNoStore
		return unchanged
	}

	products, err := r.products(ctx, store.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "price reconciliation skipped: product lookup failed",
			slog.String("store_id", store.ID),
			slog.String("error", err.Error()),
		)
		unchanged.Outcome = metrics.ReconcileFetchError
		return unchanged
	}

	updated := cart.Clone()
	repriced := updated.ApplyPrices(domain.PriceIndex(products))

	outcome := metrics.ReconcileUnchanged
	if repriced > 0 {
		outcome = metrics.ReconcileUpdated
	}

	r.logger.DebugContext(ctx, "cart prices reconciled",
		slog.String("store_id", store.ID),
		slog.Int("repriced", repriced),
	)

	return ReconcileResult{
		Cart:       updated,
		Reconciled: true,
		Repriced:   repriced,
		Store:      store,
		Outcome:    outcome,
	}
}

// ResolveStore finds the catalog store matching name. Names are compared
// after lower-casing, dropping possessive 's and stripping punctuation; an
// exact match wins over containment. It returns nil when nothing matches.
func (r *Reconciler) ResolveStore(ctx context.Context, name string) (*domain.Store, error) {
	if slug.Compact(name) == "" {
		return nil, nil
	}

	stores, err := r.stores(ctx)
	if err != nil {
		return nil, err
	}

	i := slug.Match(name, domain.StoreNames(stores))
	if i < 0 {
		return nil, nil
	}
	store := stores[i]
	return &store, nil
}

func (r *Reconciler) stores(ctx context.Context) ([]domain.Store, error) {
	v, err := r.shared(ctx, "stores", func(ctx context.Context) (any, error) {
		return r.catalog.ListStores(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return v.([]domain.Store), nil
}

func (r *Reconciler) products(ctx context.Context, storeID string) ([]domain.Product, error) {
	v, err := r.shared(ctx, "products:"+storeID, func(ctx context.Context) (any, error) {
		return r.catalog.ListProducts(ctx, storeID)
	})
	if err != nil {
		return nil, fmt.Errorf("list products for store %s: %w", storeID, err)
	}
	return v.([]domain.Product), nil
}

// shared runs fn once per key for all concurrent callers. The fetch is
// detached from any single caller's cancellation and bounded by
// sharedFetchTimeout; each caller still stops waiting when its own ctx ends.
func (r *Reconciler) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
