package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the storefront's immutable copy of a submitted order, grouped by
// client id so a returning browser can list its past orders.
type Receipt struct {
	OrderID   string          `json:"orderId"`
	ClientID  string          `json:"clientId"`
	StoreName string          `json:"storeName,omitempty"`
	Summary   OrderSummary    `json:"summary"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewReceipt snapshots a submitted request.
func NewReceipt(orderID string, req *BookingRequest, now time.Time) *Receipt {
	return &Receipt{
		OrderID:   orderID,
		ClientID:  req.CustomerCID,
		StoreName: req.Store,
		Summary:   req.OrderSummary,
		Total:     req.OrderSummary.Total,
		CreatedAt: now.UTC(),
	}
}
