package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus is owned by the backend. The storefront only reflects it.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusAssigned   OrderStatus = "assigned"
	StatusInProgress OrderStatus = "in-progress"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Human renders the status for people: "in-progress" becomes "in progress".
func (s OrderStatus) Human() string {
	return strings.ReplaceAll(string(s), "-", " ")
}

// StatusMessage is the one-shot notification text for a status change.
func StatusMessage(s OrderStatus) string {
	return "Order status updated to " + s.Human()
}

// ResponseWindow is how long an operator has to pick up a new order before
// the customer is prompted to reach out directly.
const ResponseWindow = 30 * time.Minute

// Customer identifies who placed a booking.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Booking is the backend's view of a submitted order.
type Booking struct {
	ID           string        `json:"id"`
	Status       OrderStatus   `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt,omitzero"`
	Customer     Customer      `json:"customer"`
	Store        string        `json:"store,omitempty"`
	Date         string        `json:"date,omitempty"`
	Service      string        `json:"service,omitempty"`
	OrderSummary *OrderSummary `json:"orderSummary,omitempty"`
}

// Deadline is when the response window closes.
func (b *Booking) Deadline() time.Time {
	return b.CreatedAt.Add(ResponseWindow)
}

// StatusEvent is a pushed status change for one order.
type StatusEvent struct {
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Countdown returns the time left until deadline, never negative.
func Countdown(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// CountdownText renders a duration as m:ss, rounding partial seconds up so
// the display only reads 0:00 once the time is actually up.
func CountdownText(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
