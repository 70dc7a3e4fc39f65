package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

// HelpMeBuyPack is the service that asks the operator to shop on the
// customer's behalf. It needs a fulfillment store.
const HelpMeBuyPack = "Help Me Buy Pack"

// Booking validation messages shown to the customer as-is.
const (
	MsgNoServices    = "Please select at least one service"
	MsgStoreRequired = "Please select a store for Help Me Buy orders"
	MsgNameAndPhone  = "Name and phone are required"
)

// ServiceSelection is one chosen add-on service, priced when it was picked.
type ServiceSelection struct {
	ServiceID string          `json:"serviceId,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// BookingInput is what the customer filled in on the booking form.
type BookingInput struct {
	Name     string
	Phone    string
	Date     string
	Notes    string
	Store    string
	Services []ServiceSelection
}

// HasService reports whether a service with the given name is selected.
func (in BookingInput) HasService(name string) bool {
	for _, s := range in.Services {
		if s.Name == name {
			return true
		}
	}
	return false
}

// ValidateBooking checks the form before anything leaves the process. The
// checks run in a fixed order and the first failure wins.
func ValidateBooking(in BookingInput) error {
	if len(in.Services) == 0 {
		return apperrors.InvalidInput(MsgNoServices)
	}
	if in.HasService(HelpMeBuyPack) && strings.TrimSpace(in.Store) == "" {
		return apperrors.InvalidInput(MsgStoreRequired)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Phone) == "" {
		return apperrors.InvalidInput(MsgNameAndPhone)
	}
	return nil
}

// ServiceEntry is a selected service as the backend receives it.
type ServiceEntry struct {
	Service   string          `json:"service"`
	Price     decimal.Decimal `json:"price"`
	Notes     string          `json:"notes,omitempty"`
	Store     string          `json:"store,omitempty"`
	ProductID string          `json:"productId,omitempty"`
}

// BookingItem is a cart line as the backend receives it.
type BookingItem struct {
	ID        string          `json:"_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"qty"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Summary line kinds.
const (
	LineTypeItem    = "item"
	LineTypeService = "service"
)

// SummaryLine is one row of an order summary.
type SummaryLine struct {
	Type      string          `json:"type"`
	ProductID string          `json:"productId,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderSummary is computed once at submission and never changed afterwards.
// Total is always ItemsTotal + ServicesTotal.
type OrderSummary struct {
	Items         []SummaryLine   `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Shipping      decimal.Decimal `json:"shipping"`
	ItemsTotal    decimal.Decimal `json:"itemsTotal"`
	ServicesTotal decimal.Decimal `json:"servicesTotal"`
	Total         decimal.Decimal `json:"total"`
	Store         string          `json:"store,omitempty"`
}

// BookingRequest is the body of POST /api/bookings.
type BookingRequest struct {
	Name         string         `json:"name"`
	Phone        string         `json:"phone"`
	Date         string         `json:"date,omitempty"`
	Services     []ServiceEntry `json:"services"`
	Items        []BookingItem  `json:"items,omitempty"`
	CustomerCID  string         `json:"customerCid"`
	OrderSummary OrderSummary   `json:"orderSummary"`
	Service      string         `json:"service,omitempty"`
	Store        string         `json:"store,omitempty"`
	Notes        string         `json:"-"`
}

// NewBookingRequest combines the form, the optional cart and the client id
// into one order. Cart items are only included when the cart is non-empty.
func NewBookingRequest(in BookingInput, cart *Cart, clientID string) *BookingRequest {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	notes := strings.TrimSpace(in.Notes)
	selectedStore := strings.TrimSpace(in.Store)

	store := selectedStore
	var items []BookingItem
	if !cart.IsEmpty() {
		if cart.StoreName != "" {
			store = cart.StoreName
		}
		items = make([]BookingItem, 0, len(cart.Items))
		for _, li := range cart.Items {
			items = append(items, BookingItem{
				ID:        li.ID,
				Name:      li.Name,
				Image:     li.Image,
				UnitPrice: li.UnitPrice,
				Quantity:  li.Quantity,
				Subtotal:  li.Subtotal(),
			})
		}
	}

	entries := make([]ServiceEntry, 0, len(in.Services))
	names := make([]string, 0, len(in.Services))
	for _, s := range in.Services {
		price := s.UnitPrice
		if price.IsNegative() {
			price = decimal.Zero
		}
		entry := ServiceEntry{Service: s.Name, Price: price, Notes: notes}
		if s.Name == HelpMeBuyPack {
			entry.Store = selectedStore
			if len(items) > 0 {
				entry.ProductID = items[0].ID
			}
		}
		entries = append(entries, entry)
		names = append(names, s.Name)
	}

	return &BookingRequest{
		Name:         name,
		Phone:        phone,
		Date:         strings.TrimSpace(in.Date),
		Services:     entries,
		Items:        items,
		CustomerCID:  clientID,
		OrderSummary: NewOrderSummary(items, entries, store),
		Service:      strings.Join(names, ", "),
		Store:        store,
		Notes:        notes,
	}
}

// NewOrderSummary lists cart items first, then services as single-unit lines.
func NewOrderSummary(items []BookingItem, services []ServiceEntry, store string) OrderSummary {
	lines := make([]SummaryLine, 0, len(items)+len(services))
	itemsTotal := decimal.Zero
	for _, it := range items {
		lines = append(lines, SummaryLine{
			Type:      LineTypeItem,
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
		itemsTotal = itemsTotal.Add(it.Subtotal)
	}

	servicesTotal := decimal.Zero
	for _, svc := range services {
		lines = append(lines, SummaryLine{
			Type:      LineTypeService,
			ProductID: svc.ProductID,
			Name:      svc.Service,
			Quantity:  1,
			UnitPrice: svc.Price,
			Subtotal:  svc.Price,
		})
		servicesTotal = servicesTotal.Add(svc.Price)
	}

	return OrderSummary{
		Items:         lines,
		Subtotal:      itemsTotal,
		Tax:           decimal.Zero,
		Shipping:      decimal.Zero,
		ItemsTotal:    itemsTotal,
		ServicesTotal: servicesTotal,
		Total:         itemsTotal.Add(servicesTotal),
		Store:         store,
	}
}
