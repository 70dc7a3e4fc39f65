package domain

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestFormatNaira(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "₦0"},
		{"500", "₦500"},
		{"2500", "₦2,500"},
		{"1234567", "₦1,234,567"},
		{"1234.5", "₦1,234.50"},
		{"1000.00", "₦1,000"},
		{"-2500", "₦-2,500"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNaira(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "2349079529836", DigitsOnly(FallbackOperatorContact))
	assert.Equal(t, "2348031234567", DigitsOnly("+234 (803) 123-4567"))
	assert.Empty(t, DigitsOnly("n/a"))
}

func TestIsMobileUserAgent(t *testing.T) {
	assert.True(t, IsMobileUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"))
	assert.True(t, IsMobileUserAgent("Mozilla/5.0 (Linux; android 14)"))
	assert.True(t, IsMobileUserAgent("Opera Mini/8.0"))
	assert.False(t, IsMobileUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64)"))
	assert.False(t, IsMobileUserAgent(""))
}

func TestEncodeURIComponent(t *testing.T) {
	assert.Equal(t, "a%20b", EncodeURIComponent("a b"))
	assert.Equal(t, "-_.!~*'()", EncodeURIComponent("-_.!~*'()"))
	assert.Equal(t, "%E2%82%A6500%0AOK%3F%26", EncodeURIComponent("₦500\nOK?&"))

	decoded, err := url.PathUnescape(EncodeURIComponent("Hi, my name is Ada — ₦2,500"))
	require.NoError(t, err)
	assert.Equal(t, "Hi, my name is Ada — ₦2,500", decoded)
}

func TestRecapText_Full(t *testing.T) {
	cart := &Cart{StoreName: "Acme"}
	cart.Add(LineItem{ID: "p1", Name: "Soap", UnitPrice: naira(1000)}, 2)
	in := validInput()
	in.Date = "2026-10-20"
	in.Notes = "Gate code 12"

	req := NewBookingRequest(in, cart, "cid_1")
	text := NewRecap(req, "b-42").Text()

	want := strings.Join([]string{
		"Hi, my name is Ada. I'd like to complete my order payment (₦2,500).",
		"Order ID: b-42",
		"Store: Acme",
		"Items:\n- Soap x2 — ₦2,000",
		"Services:\n- Wash — ₦500",
		"Total: ₦2,500",
		"Phone: 08031234567",
		"Preferred date: 2026-10-20",
		"Notes: Gate code 12",
		"Thank you.",
	}, "\n")
	assert.Equal(t, want, text)
}

func TestRecapText_DropsBlankLines(t *testing.T) {
	req := NewBookingRequest(validInput(), nil, "cid_1")
	text := NewRecap(req, "").Text()

	want := strings.Join([]string{
		"Hi, my name is Ada. I'd like to complete my order payment (₦500).",
		"Services:\n- Wash — ₦500",
		"Total: ₦500",
		"Phone: 08031234567",
		"Thank you.",
	}, "\n")
	assert.Equal(t, want, text)
}

func TestNewHandoff(t *testing.T) {
	desktop := NewHandoff("+234 907 952 9836", "Hi there", "Mozilla/5.0 (Macintosh)")
	assert.False(t, desktop.Mobile)
	assert.Equal(t, "https://wa.me/2349079529836?text=Hi%20there", desktop.URL)
	assert.Equal(t, desktop.WebURL, desktop.URL)
	assert.Equal(t, "whatsapp://send?phone=2349079529836&text=Hi%20there", desktop.AppURL)

	mobile := NewHandoff("+2349079529836", "Hi there", "Mozilla/5.0 (iPhone)")
	assert.True(t, mobile.Mobile)
	assert.Equal(t, mobile.AppURL, mobile.URL)
	assert.Equal(t, "Hi there", mobile.Message)
}
