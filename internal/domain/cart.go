package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one product, quantity and price snapshot within a cart.
type LineItem struct {
	ID        string
	Name      string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal is always derived from unit price and quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is what a customer intends to buy from a single store.
type Cart struct {
	StoreName string
	Items     []LineItem
}

// HelpFee is charged on top of a bare cart. It is zero today; services are
// priced separately at booking time.
var HelpFee = decimal.Zero

// ItemsTotal sums line subtotals. It is recomputed on every call.
func (c *Cart) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Total returns the amount owed for the cart alone.
func (c *Cart) Total() decimal.Decimal {
	return c.ItemsTotal().Add(HelpFee)
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) indexOf(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the line item with the given product id.
func (c *Cart) Find(id string) (LineItem, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// Add increments the quantity of an existing line or appends a new one. The
// unit price of an existing line is kept; only reconciliation changes it.
func (c *Cart) Add(item LineItem, quantity int) {
	if i := c.indexOf(item.ID); i >= 0 {
		c.Items[i].Quantity += quantity
		return
	}
	item.Quantity = quantity
	c.Items = append(c.Items, item)
}

// SetQuantity changes a line's quantity; zero or less removes the line.
// It reports whether the line existed.
func (c *Cart) SetQuantity(id string, quantity int) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	c.Items[i].Quantity = quantity
	return true
}

// Remove deletes a line and reports whether it existed.
func (c *Cart) Remove(id string) bool {
	return c.SetQuantity(id, 0)
}

// SetStore scopes the cart to a store. Switching to a different store drops
// every line item, since prices and stock belong to the previous store. It
// reports whether items were dropped.
func (c *Cart) SetStore(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, strings.TrimSpace(c.StoreName)) {
		return false
	}
	c.StoreName = name
	if len(c.Items) == 0 {
		return false
	}
	c.Items = nil
	return true
}

// ApplyPrices replaces the unit price of every line whose id is in prices.
// Lines without a catalog match keep their cached price. It returns the
// number of lines whose price changed.
func (c *Cart) ApplyPrices(prices map[string]decimal.Decimal) int {
	changed := 0
	for i := range c.Items {
		price, ok := prices[c.Items[i].ID]
		if !ok || price.IsNegative() {
			continue
		}
		if !price.Equal(c.Items[i].UnitPrice) {
			changed++
		}
		c.Items[i].UnitPrice = price
	}
	return changed
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	cp := &Cart{StoreName: c.StoreName}
	if c.Items != nil {
		cp.Items = make([]LineItem, len(c.Items))
		copy(cp.Items, c.Items)
	}
	return cp
}

type lineItemJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartJSON struct {
	StoreName  string          `json:"storeName"`
	LineItems  []lineItemJSON  `json:"lineItems"`
	ItemCount  int             `json:"itemCount"`
	ItemsTotal decimal.Decimal `json:"itemsTotal"`
	HelpFee    decimal.Decimal `json:"helpFee"`
	Total      decimal.Decimal `json:"total"`
}

// MarshalJSON writes the cart with every derived amount recomputed.
func (c Cart) MarshalJSON() ([]byte, error) {
	out := cartJSON{
		StoreName:  c.StoreName,
		LineItems:  make([]lineItemJSON, 0, len(c.Items)),
		ItemCount:  c.ItemCount(),
		ItemsTotal: c.ItemsTotal(),
		HelpFee:    HelpFee,
		Total:      c.Total(),
	}
	for _, item := range c.Items {
		out.LineItems = append(out.LineItems, lineItemJSON{
			ID:        item.ID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal(),
		})
	}
	return json.Marshal(out)
}

// incomingLine accepts both the storefront shape and the legacy deep-link
// shape ({_id, price, qty}).
type incomingLine struct {
	ID        string           `json:"id"`
	LegacyID  string           `json:"_id"`
	ProductID string           `json:"productId"`
	Name      string           `json:"name"`
	Title     string           `json:"title"`
	Image     string           `json:"image"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Price     *decimal.Decimal `json:"price"`
	Quantity  int              `json:"quantity"`
	Qty       int              `json:"qty"`
}

type incomingCart struct {
	StoreName string         `json:"storeName"`
	Store     string         `json:"store"`
	LineItems []incomingLine `json:"lineItems"`
	Items     []incomingLine `json:"items"`
}

// UnmarshalJSON never trusts stored subtotals or totals. Quantities below one
// become one, negative prices become zero, lines without an id are dropped
// and duplicate ids are merged.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var in incomingCart
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	c.StoreName = firstNonEmpty(in.StoreName, in.Store)
	c.Items = nil

	lines := in.LineItems
	if len(lines) == 0 {
		lines = in.Items
	}
	for _, l := range lines {
		id := firstNonEmpty(l.ID, l.LegacyID, l.ProductID)
		if id == "" {
			continue
		}
		qty := l.Quantity
		if qty == 0 {
			qty = l.Qty
		}
		if qty < 1 {
			qty = 1
		}
		price := decimal.Zero
		switch {
		case l.UnitPrice != nil:
			price = *l.UnitPrice
		case l.Price != nil:
			price = *l.Price
		}
		if price.IsNegative() {
			price = decimal.Zero
		}
		c.Add(LineItem{
			ID:        id,
			Name:      firstNonEmpty(l.Name, l.Title, "Item"),
			Image:     l.Image,
			UnitPrice: price,
		}, qty)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
