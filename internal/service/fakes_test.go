package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/internal/realtime"
)

// --- Test helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func naira(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

// --- Fake catalog ---

type fakeCatalog struct {
	mu         sync.Mutex
	stores     []domain.Store
	products   map[string][]domain.Product
	services   []domain.ServiceOffering
	storesErr  error
	productErr error

	storeCalls   atomic.Int32
	productCalls atomic.Int32
	// gate, when set, blocks ListStores until closed.
	gate chan struct{}
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		stores: []domain.Store{
			{ID: "s-acme", Name: "Acme"},
			{ID: "s-mama", Name: "Mama's Kitchen"},
		},
		products: map[string][]domain.Product{
			"s-acme": {
				{ID: "p1", StoreID: "s-acme", Name: "Soap", Price: naira(1000)},
				{ID: "p2", StoreID: "s-acme", Name: "Bleach", Price: naira(750)},
			},
			"s-mama": {
				{ID: "m1", StoreID: "s-mama", Name: "Jollof", Price: naira(2500)},
			},
		},
		services: []domain.ServiceOffering{
			{ID: "svc-1", Name: "Wash", Price: naira(500)},
			{ID: "svc-2", Name: domain.HelpMeBuyPack, Price: naira(1000)},
		},
	}
}

func (c *fakeCatalog) setPrice(storeID, productID string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.products[storeID] {
		if p.ID == productID {
			c.products[storeID][i].Price = price
		}
	}
}

func (c *fakeCatalog) ListStores(ctx context.Context) ([]domain.Store, error) {
	c.storeCalls.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storesErr != nil {
		return nil, c.storesErr
	}
	return append([]domain.Store(nil), c.stores...), nil
}

func (c *fakeCatalog) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	c.productCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.productErr != nil {
		return nil, c.productErr
	}
	return append([]domain.Product(nil), c.products[storeID]...), nil
}

func (c *fakeCatalog) ListServices(_ context.Context) ([]domain.ServiceOffering, error) {
	return c.services, nil
}

// --- Fake booking backend ---

type fakeBackend struct {
	mu       sync.Mutex
	requests []*domain.BookingRequest
	orderID  string
	err      error
	contact  string
	contactE error
}

func (b *fakeBackend) CreateBooking(_ context.Context, req *domain.BookingRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.err != nil {
		return "", b.err
	}
	return b.orderID, nil
}

func (b *fakeBackend) OperatorContact(_ context.Context) (string, error) {
	return b.contact, b.contactE
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// --- Fake hand-off sink ---

type fakeSink struct {
	openErr error
	copyErr error
	opened  []string
	copied  []string
}

func (s *fakeSink) Open(url string) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = append(s.opened, url)
	return nil
}

func (s *fakeSink) Copy(text string) error {
	if s.copyErr != nil {
		return s.copyErr
	}
	s.copied = append(s.copied, text)
	return nil
}

// --- Recording event sinks ---

type recordingEvents struct {
	mu        sync.Mutex
	cleared   []string
	submitted []string
	err       error
}

func (e *recordingEvents) PublishCartCleared(_ context.Context, sessionID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleared = append(e.cleared, sessionID+":"+reason)
	return e.err
}

func (e *recordingEvents) PublishBookingSubmitted(_ context.Context, orderID string, _ *domain.BookingRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitted = append(e.submitted, orderID)
	return e.err
}

// --- Fake order channel ---

type fakeSubscription struct {
	ch        chan realtime.Message
	closed    atomic.Int32
	closeOnce sync.Once
}

func (s *fakeSubscription) C() <-chan realtime.Message {
	return s.ch
}

func (s *fakeSubscription) Close() error {
	s.closed.Add(1)
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}

func (s *fakeSubscription) push(m realtime.Message) {
	s.ch <- m
}

type fakeSubscriber struct {
	mu   sync.Mutex
	subs map[string][]*fakeSubscription
	err  error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{subs: make(map[string][]*fakeSubscription)}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, orderID string) (realtime.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSubscription{ch: make(chan realtime.Message, 8)}
	context.AfterFunc(ctx, func() { _ = s.Close() })
	f.mu.Lock()
	f.subs[orderID] = append(f.subs[orderID], s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeSubscriber) last(orderID string) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[orderID]
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

type fakeFetcher struct {
	bookings map[string]*domain.Booking
	err      error
	calls    atomic.Int32
}

func (f *fakeFetcher) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.bookings[id]
	if !ok {
		return nil, errors.New("booking " + id + " not found")
	}
	cp := *b
	return &cp, nil
}
