package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// FallbackOperatorContact is used when neither configuration nor backend
// settings name an operator number.
const FallbackOperatorContact = "+2349079529836"

// Messages shown after a successful booking.
const (
	MsgBookingCreated = "Booking created — we will contact you"
	MsgRecapCopied    = "Order summary copied. Send it via WhatsApp."
	MsgBookingFailed  = "Booking failed"
)

var mobileUA = regexp.MustCompile(`(?i)Android|iPhone|iPad|iPod|IEMobile|Opera Mini`)

// IsMobileUserAgent picks the native app link over the web link.
func IsMobileUserAgent(ua string) bool {
	return mobileUA.MatchString(ua)
}

// DigitsOnly strips everything but 0-9, so "+234 907-952" becomes "234907952".
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Recap is the human-readable order message sent to the operator.
type Recap struct {
	CustomerName string
	OrderID      string
	Store        string
	Items        []BookingItem
	Services     []ServiceEntry
	Total        decimal.Decimal
	Phone        string
	Date         string
	Notes        string
}

// NewRecap builds the recap for a submitted request.
func NewRecap(req *BookingRequest, orderID string) Recap {
	return Recap{
		CustomerName: req.Name,
		OrderID:      orderID,
		Store:        req.Store,
		Items:        req.Items,
		Services:     req.Services,
		Total:        req.OrderSummary.Total,
		Phone:        req.Phone,
		Date:         req.Date,
		Notes:        req.Notes,
	}
}

// Text renders the recap one fact per line, leaving out blank facts.
func (r Recap) Text() string {
	total := FormatNaira(r.Total)
	lines := []string{
		fmt.Sprintf("Hi, my name is %s. I'd like to complete my order payment (%s).", r.CustomerName, total),
	}
	if r.OrderID != "" {
		lines = append(lines, "Order ID: "+r.OrderID)
	}
	if r.Store != "" {
		lines = append(lines, "Store: "+r.Store)
	}
	if len(r.Items) > 0 {
		block := []string{"Items:"}
		for _, it := range r.Items {
			block = append(block, fmt.Sprintf("- %s x%d — %s", it.Name, it.Quantity, FormatNaira(it.Subtotal)))
		}
		lines = append(lines, strings.Join(block, "\n"))
	}
	if len(r.Services) > 0 {
		block := []string{"Services:"}
		for _, svc := range r.Services {
			block = append(block, fmt.Sprintf("- %s — %s", svc.Service, FormatNaira(svc.Price)))
		}
		lines = append(lines, strings.Join(block, "\n"))
	}
	lines = append(lines, "Total: "+total)
	if r.Phone != "" {
		lines = append(lines, "Phone: "+r.Phone)
	}
	if r.Date != "" {
		lines = append(lines, "Preferred date: "+r.Date)
	}
	if r.Notes != "" {
		lines = append(lines, "Notes: "+r.Notes)
	}
	lines = append(lines, "Thank you.")
	return strings.Join(lines, "\n")
}

// Handoff tells the browser how to pass the recap to the operator.
type Handoff struct {
	Message string `json:"message"`
	URL     string `json:"url"`
	AppURL  string `json:"appUrl"`
	WebURL  string `json:"webUrl"`
	Mobile  bool   `json:"mobile"`
	Opened  bool   `json:"opened"`
	Copied  bool   `json:"copied"`
}

// NewHandoff builds both link forms and selects one for the user agent.
func NewHandoff(contact, message, userAgent string) Handoff {
	phone := DigitsOnly(contact)
	encoded := EncodeURIComponent(message)
	h := Handoff{
		Message: message,
		AppURL:  "whatsapp://send?phone=" + phone + "&text=" + encoded,
		WebURL:  "https://wa.me/" + phone + "?text=" + encoded,
		Mobile:  IsMobileUserAgent(userAgent),
	}
	if h.Mobile {
		h.URL = h.AppURL
	} else {
		h.URL = h.WebURL
	}
	return h
}

// EncodeURIComponent percent-encodes every byte except A-Z a-z 0-9 and
// - _ . ! ~ * ' ( ), the same set browsers leave alone.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isURIUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
