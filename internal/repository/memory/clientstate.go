// Package memory provides in-process repositories for tests and local runs
// without Redis or PostgreSQL.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

// ClientStateStore implements repository.ClientStateStore in memory. Carts
// are stored serialized so callers never share a pointer with the store.
type ClientStateStore struct {
	mu        sync.Mutex
	carts     map[string][]byte
	clientIDs map[string]string
	lastOrder map[string]string

	// WriteErr, when set, fails every write.
	WriteErr error
	// Writes counts successful and failed write calls.
	Writes int
}

// NewClientStateStore returns an empty store.
func NewClientStateStore() *ClientStateStore {
	return &ClientStateStore{
		carts:     make(map[string][]byte),
		clientIDs: make(map[string]string),
		lastOrder: make(map[string]string),
	}
}

// HasCart reports whether a cart is stored for the session.
func (s *ClientStateStore) HasCart(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[sessionID]
	return ok
}

// RawCart returns the stored bytes for the session's cart.
func (s *ClientStateStore) RawCart(sessionID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.carts[sessionID]...)
}

// PutRawCart stores bytes as-is, bypassing validation.
func (s *ClientStateStore) PutRawCart(sessionID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[sessionID] = append([]byte(nil), data...)
}

func (s *ClientStateStore) write() error {
	s.Writes++
	return s.WriteErr
}

func (s *ClientStateStore) GetCart(_ context.Context, sessionID string) (*domain.Cart, error) {
	s.mu.Lock()
	data, ok := s.carts[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound("cart", sessionID)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &cart, nil
}

func (s *ClientStateStore) SaveCart(ctx context.Context, sessionID string, cart *domain.Cart) error {
	if cart.IsEmpty() {
		return s.DeleteCart(ctx, sessionID)
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	s.carts[sessionID] = data
	return nil
}

func (s *ClientStateStore) DeleteCart(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	delete(s.carts, sessionID)
	return nil
}

func (s *ClientStateStore) GetOrCreateClientID(_ context.Context, sessionID, candidate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.clientIDs[sessionID]; ok {
		return id, nil
	}
	if err := s.write(); err != nil {
		return "", err
	}
	s.clientIDs[sessionID] = candidate
	return candidate, nil
}

func (s *ClientStateStore) GetLastOrder(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.lastOrder[sessionID]
	if !ok {
		return "", apperrors.NotFound("last order", sessionID)
	}
	return id, nil
}

func (s *ClientStateStore) SetLastOrder(_ context.Context, sessionID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(); err != nil {
		return err
	}
	s.lastOrder[sessionID] = orderID
	return nil
}

// ReceiptRepository implements repository.ReceiptRepository in memory.
type ReceiptRepository struct {
	mu       sync.Mutex
	receipts map[string]domain.Receipt

	// CreateErr, when set, fails every Create.
	CreateErr error
}

// NewReceiptRepository returns an empty repository.
func NewReceiptRepository() *ReceiptRepository {
	return &ReceiptRepository{receipts: make(map[string]domain.Receipt)}
}

func (r *ReceiptRepository) Create(_ context.Context, receipt *domain.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if _, exists := r.receipts[receipt.OrderID]; !exists {
		r.receipts[receipt.OrderID] = *receipt
	}
	return nil
}

func (r *ReceiptRepository) GetByOrderID(_ context.Context, orderID string) (*domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.receipts[orderID]
	if !ok {
		return nil, apperrors.NotFound("receipt", orderID)
	}
	return &rec, nil
}

func (r *ReceiptRepository) ListByClient(_ context.Context, clientID string, offset, limit int) ([]domain.Receipt, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]domain.Receipt, 0)
	for _, rec := range r.receipts {
		if rec.ClientID == clientID {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []domain.Receipt{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
