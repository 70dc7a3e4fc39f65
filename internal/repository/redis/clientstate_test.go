package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

func setupTestRedis(t *testing.T) (*ClientStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewClientStateStore(client, 24*time.Hour), mr
}

func sampleCart() *domain.Cart {
	c := &domain.Cart{StoreName: "Acme"}
	c.Add(domain.LineItem{ID: "p1", Name: "Soap", UnitPrice: decimal.NewFromInt(1000)}, 2)
	return c
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

func TestClientStateStore_SaveAndGetCart(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCart(ctx, "s1", sampleCart()))
	assert.True(t, mr.Exists("session:s1:cart"))
	assert.Equal(t, 24*time.Hour, mr.TTL("session:s1:cart"))

	got, err := store.GetCart(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.StoreName)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "2000", got.ItemsTotal().String())
}

func TestClientStateStore_GetCart_NotFound(t *testing.T) {
	store, _ := setupTestRedis(t)

	_, err := store.GetCart(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestClientStateStore_GetCart_Corrupt(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("session:s1:cart", "{not json"))

	_, err := store.GetCart(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal cart")
}

func TestClientStateStore_GetCart_RecomputesStoredSubtotals(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("session:s1:cart",
		`{"storeName":"Acme","lineItems":[{"id":"p1","name":"Soap","unitPrice":"10","quantity":3,"subtotal":"1"}],"itemsTotal":"1"}`))

	got, err := store.GetCart(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "30", got.ItemsTotal().String())
}

func TestClientStateStore_SaveEmptyCartDeletes(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCart(ctx, "s1", sampleCart()))
	require.NoError(t, store.SaveCart(ctx, "s1", &domain.Cart{StoreName: "Acme"}))

	assert.False(t, mr.Exists("session:s1:cart"))
}

func TestClientStateStore_DeleteCart(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCart(ctx, "s1", sampleCart()))
	require.NoError(t, store.DeleteCart(ctx, "s1"))
	assert.False(t, mr.Exists("session:s1:cart"))

	assert.NoError(t, store.DeleteCart(ctx, "s1"))
}

func TestClientStateStore_ConnectionError(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	err := store.SaveCart(context.Background(), "s1", sampleCart())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set cart")
}

// ---------------------------------------------------------------------------
// Client id
// ---------------------------------------------------------------------------

func TestClientStateStore_GetOrCreateClientID(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	id, err := store.GetOrCreateClientID(ctx, "s1", "cid_first")
	require.NoError(t, err)
	assert.Equal(t, "cid_first", id)

	mr.FastForward(time.Hour)

	id, err = store.GetOrCreateClientID(ctx, "s1", "cid_second")
	require.NoError(t, err)
	assert.Equal(t, "cid_first", id)
	assert.Equal(t, 24*time.Hour, mr.TTL("session:s1:cid"))
}

func TestClientStateStore_GetOrCreateClientID_Concurrent(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := store.GetOrCreateClientID(ctx, "s1", "cid_"+string(rune('a'+i)))
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

// ---------------------------------------------------------------------------
// Last order
// ---------------------------------------------------------------------------

func TestClientStateStore_LastOrder(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.GetLastOrder(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, store.SetLastOrder(ctx, "s1", "b-1"))
	require.NoError(t, store.SetLastOrder(ctx, "s1", "b-2"))

	id, err := store.GetLastOrder(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "b-2", id)
}

func TestClientStateStore_KeysExpire(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SetLastOrder(ctx, "s1", "b-1"))
	mr.FastForward(25 * time.Hour)

	_, err := store.GetLastOrder(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestClientStateStore_ReadsSlideTTL(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCart(ctx, "s1", sampleCart()))
	require.NoError(t, store.SetLastOrder(ctx, "s1", "b-1"))

	// Only reads from here on; each one lands before the previous TTL runs out.
	for i := 0; i < 3; i++ {
		mr.FastForward(20 * time.Hour)

		_, err := store.GetCart(ctx, "s1")
		require.NoError(t, err, "cart expired after read %d", i)
		_, err = store.GetLastOrder(ctx, "s1")
		require.NoError(t, err, "last order expired after read %d", i)

		assert.Equal(t, 24*time.Hour, mr.TTL("session:s1:cart"))
		assert.Equal(t, 24*time.Hour, mr.TTL("session:s1:last_order"))
	}
}
