package domain

import "github.com/shopspring/decimal"

// Store is a fulfillment store listed by the backend.
type Store struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Product is a store's catalog entry with its current price.
type Product struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"storeId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// LineItem snapshots the product at its current price.
func (p Product) LineItem() LineItem {
	return LineItem{
		ID:        p.ID,
		Name:      p.Name,
		Image:     p.Image,
		UnitPrice: p.Price,
	}
}

// ServiceOffering is a bookable service with a flat price.
type ServiceOffering struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// StoreNames returns the names of stores in order, for name matching.
func StoreNames(stores []Store) []string {
	names := make([]string, len(stores))
	for i, s := range stores {
		names[i] = s.Name
	}
	return names
}

// PriceIndex maps product id to current price.
func PriceIndex(products []Product) map[string]decimal.Decimal {
	idx := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		idx[p.ID] = p.Price
	}
	return idx
}
