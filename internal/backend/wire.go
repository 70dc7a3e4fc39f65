package backend

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Swiftdaops/QuickClean/internal/domain"
)

// The backend is a document store; ids arrive as "_id" and, on some
// endpoints, as "id".

type storeWire struct {
	UnderscoreID string `json:"_id"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Image        string `json:"image"`
}

func (w storeWire) toDomain() domain.Store {
	return domain.Store{
		ID:          pick(w.UnderscoreID, w.ID),
		Name:        strings.TrimSpace(w.Name),
		Description: w.Description,
		Image:       w.Image,
	}
}

type productWire struct {
	UnderscoreID string          `json:"_id"`
	ID           string          `json:"id"`
	Store        string          `json:"store"`
	Name         string          `json:"name"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Images       []string        `json:"images"`
	Price        decimal.Decimal `json:"price"`
}

func (w productWire) toDomain() domain.Product {
	image := w.Image
	if image == "" && len(w.Images) > 0 {
		image = w.Images[0]
	}
	price := w.Price
	if price.IsNegative() {
		price = decimal.Zero
	}
	return domain.Product{
		ID:          pick(w.UnderscoreID, w.ID),
		StoreID:     w.Store,
		Name:        pick(w.Name, w.Title),
		Description: w.Description,
		Image:       image,
		Price:       price,
	}
}

type serviceWire struct {
	UnderscoreID string          `json:"_id"`
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
}

func (w serviceWire) toDomain() domain.ServiceOffering {
	return domain.ServiceOffering{
		ID:          pick(w.UnderscoreID, w.ID),
		Name:        w.Name,
		Description: w.Description,
		Price:       w.Price,
	}
}

type customerWire struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type bookingWire struct {
	UnderscoreID string               `json:"_id"`
	ID           string               `json:"id"`
	Status       string               `json:"status"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	Name         string               `json:"name"`
	CustomerName string               `json:"customerName"`
	Phone        string               `json:"phone"`
	Customer     *customerWire        `json:"customer"`
	Store        string               `json:"store"`
	Date         string               `json:"date"`
	Service      string               `json:"service"`
	OrderSummary *domain.OrderSummary `json:"orderSummary"`
}

func (w bookingWire) toDomain() *domain.Booking {
	status := domain.OrderStatus(w.Status)
	if status == "" {
		status = domain.StatusPending
	}
	// Bookings carry the customer nested; older records kept it flat.
	var nested customerWire
	if w.Customer != nil {
		nested = *w.Customer
	}
	return &domain.Booking{
		ID:        pick(w.UnderscoreID, w.ID),
		Status:    status,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		Customer: domain.Customer{
			Name:  pick(nested.Name, w.Name, w.CustomerName),
			Phone: pick(nested.Phone, w.Phone),
		},
		Store:        w.Store,
		Date:         w.Date,
		Service:      w.Service,
		OrderSummary: w.OrderSummary,
	}
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
