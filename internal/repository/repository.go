package repository

import (
	"context"

	"github.com/Swiftdaops/QuickClean/internal/domain"
)

// ClientStateStore holds what a browser used to keep locally: its cart, its
// stable client id and the last order it looked at. Every write returns its
// error so callers decide whether a failure matters.
type ClientStateStore interface {
	// GetCart returns the session's cart, or an ErrNotFound error when none
	// is stored.
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)

	// SaveCart persists a non-empty cart.
	SaveCart(ctx context.Context, sessionID string, cart *domain.Cart) error

	// DeleteCart removes the stored cart. Deleting a missing cart is not an error.
	DeleteCart(ctx context.Context, sessionID string) error

	// GetOrCreateClientID returns the session's client id, storing candidate
	// first when none exists. Concurrent callers agree on one id.
	GetOrCreateClientID(ctx context.Context, sessionID, candidate string) (string, error)

	// GetLastOrder returns the last viewed order id, or ErrNotFound.
	GetLastOrder(ctx context.Context, sessionID string) (string, error)

	// SetLastOrder remembers the last viewed order id.
	SetLastOrder(ctx context.Context, sessionID, orderID string) error
}

// ReceiptRepository stores the storefront's copy of submitted orders.
type ReceiptRepository interface {
	// Create inserts a receipt. Recording the same order twice is a no-op.
	Create(ctx context.Context, receipt *domain.Receipt) error

	// GetByOrderID retrieves one receipt.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Receipt, error)

	// ListByClient returns a client's receipts, newest first, with the total count.
	ListByClient(ctx context.Context, clientID string, offset, limit int) ([]domain.Receipt, int, error)
}
