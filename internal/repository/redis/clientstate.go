package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

const keyPrefix = "session:"

// ClientStateStore implements repository.ClientStateStore using Redis. All
// keys of a session share one TTL that every read and write refreshes.
type ClientStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClientStateStore creates a new Redis-backed client state store.
func NewClientStateStore(client *redis.Client, ttl time.Duration) *ClientStateStore {
	return &ClientStateStore{
		client: client,
		ttl:    ttl,
	}
}

func cartKey(sessionID string) string      { return keyPrefix + sessionID + ":cart" }
func clientIDKey(sessionID string) string  { return keyPrefix + sessionID + ":cid" }
func lastOrderKey(sessionID string) string { return keyPrefix + sessionID + ":last_order" }

// GetCart retrieves the session's cart and slides its TTL.
func (s *ClientStateStore) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	data, err := s.client.GetEx(ctx, cartKey(sessionID), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", sessionID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}

	return &cart, nil
}

// SaveCart persists the cart. An empty cart is deleted instead of stored.
func (s *ClientStateStore) SaveCart(ctx context.Context, sessionID string, cart *domain.Cart) error {
	if cart.IsEmpty() {
		return s.DeleteCart(ctx, sessionID)
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := s.client.Set(ctx, cartKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}

	return nil
}

// DeleteCart removes the session's cart.
func (s *ClientStateStore) DeleteCart(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}

	return nil
}

// GetOrCreateClientID stores candidate with SETNX, so the first writer wins
// and later callers read the winner back.
func (s *ClientStateStore) GetOrCreateClientID(ctx context.Context, sessionID, candidate string) (string, error) {
	key := clientIDKey(sessionID)

	created, err := s.client.SetNX(ctx, key, candidate, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx client id: %w", err)
	}
	if created {
		return candidate, nil
	}

	pipe := s.client.TxPipeline()
	get := pipe.Get(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("redis get client id: %w", err)
	}

	return get.Val(), nil
}

// GetLastOrder returns the last order id the session viewed and slides its TTL.
func (s *ClientStateStore) GetLastOrder(ctx context.Context, sessionID string) (string, error) {
	id, err := s.client.GetEx(ctx, lastOrderKey(sessionID), s.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("last order", sessionID)
		}
		return "", fmt.Errorf("redis get last order: %w", err)
	}

	return id, nil
}

// SetLastOrder remembers the last order id the session viewed.
func (s *ClientStateStore) SetLastOrder(ctx context.Context, sessionID, orderID string) error {
	if err := s.client.Set(ctx, lastOrderKey(sessionID), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set last order: %w", err)
	}

	return nil
}
