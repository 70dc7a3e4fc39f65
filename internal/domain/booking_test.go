package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

func validInput() BookingInput {
	return BookingInput{
		Name:     "Ada",
		Phone:    "08031234567",
		Services: []ServiceSelection{{Name: "Wash", UnitPrice: naira(500)}},
	}
}

func TestValidateBooking(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BookingInput)
		wantMsg string
	}{
		{"valid", func(*BookingInput) {}, ""},
		{"no services", func(in *BookingInput) { in.Services = nil }, MsgNoServices},
		{"no services wins over missing name", func(in *BookingInput) {
			in.Services = nil
			in.Name = ""
		}, MsgNoServices},
		{"help me buy without store", func(in *BookingInput) {
			in.Services = append(in.Services, ServiceSelection{Name: HelpMeBuyPack, UnitPrice: naira(2000)})
		}, MsgStoreRequired},
		{"help me buy with blank store", func(in *BookingInput) {
			in.Services = []ServiceSelection{{Name: HelpMeBuyPack}}
			in.Store = "   "
		}, MsgStoreRequired},
		{"help me buy with store", func(in *BookingInput) {
			in.Services = []ServiceSelection{{Name: HelpMeBuyPack}}
			in.Store = "Acme"
		}, ""},
		{"blank name", func(in *BookingInput) { in.Name = "  " }, MsgNameAndPhone},
		{"blank phone", func(in *BookingInput) { in.Phone = "\t" }, MsgNameAndPhone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := ValidateBooking(in)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, tt.wantMsg, apperrors.Message(err, ""))
		})
	}
}

func TestNewBookingRequest_CartAndServiceTotals(t *testing.T) {
	cart := &Cart{StoreName: "Acme"}
	cart.Add(LineItem{ID: "p1", Name: "Soap", UnitPrice: naira(1000)}, 2)

	in := validInput()
	req := NewBookingRequest(in, cart, "cid_1")

	s := req.OrderSummary
	assert.Equal(t, "2000", s.ItemsTotal.String())
	assert.Equal(t, "500", s.ServicesTotal.String())
	assert.Equal(t, "2500", s.Total.String())
	assert.Equal(t, "2000", s.Subtotal.String())
	assert.Equal(t, "Acme", s.Store)
	assert.Equal(t, "Acme", req.Store)
	assert.Equal(t, "cid_1", req.CustomerCID)
	assert.Equal(t, "Wash", req.Service)

	require.Len(t, s.Items, 2)
	assert.Equal(t, LineTypeItem, s.Items[0].Type)
	assert.Equal(t, "p1", s.Items[0].ProductID)
	assert.Equal(t, LineTypeService, s.Items[1].Type)
	assert.Equal(t, 1, s.Items[1].Quantity)
}

func TestNewBookingRequest_WithoutCart(t *testing.T) {
	in := validInput()
	in.Services = append(in.Services, ServiceSelection{Name: "Iron", UnitPrice: naira(300)})

	for _, cart := range []*Cart{nil, {StoreName: "Acme"}} {
		req := NewBookingRequest(in, cart, "cid_1")
		assert.True(t, req.OrderSummary.ItemsTotal.IsZero())
		assert.Equal(t, "800", req.OrderSummary.Total.String())
		assert.Nil(t, req.Items)
		assert.Equal(t, "Wash, Iron", req.Service)
	}
}

func TestNewBookingRequest_HelpMeBuyCarriesStoreAndFirstProduct(t *testing.T) {
	cart := &Cart{StoreName: "Acme"}
	cart.Add(LineItem{ID: "p7", Name: "Rice", UnitPrice: naira(100)}, 1)
	cart.Add(LineItem{ID: "p8", Name: "Beans", UnitPrice: naira(100)}, 1)

	in := validInput()
	in.Store = "Acme Lekki"
	in.Notes = " ring twice "
	in.Services = []ServiceSelection{
		{Name: "Wash", UnitPrice: naira(500)},
		{Name: HelpMeBuyPack, UnitPrice: naira(1500)},
	}

	req := NewBookingRequest(in, cart, "cid_1")

	require.Len(t, req.Services, 2)
	assert.Empty(t, req.Services[0].Store)
	assert.Empty(t, req.Services[0].ProductID)
	assert.Equal(t, "ring twice", req.Services[0].Notes)
	assert.Equal(t, "Acme Lekki", req.Services[1].Store)
	assert.Equal(t, "p7", req.Services[1].ProductID)
	assert.Equal(t, "p7", req.OrderSummary.Items[3].ProductID)
}

func TestBookingRequest_WireShape(t *testing.T) {
	cart := &Cart{StoreName: "Acme"}
	cart.Add(LineItem{ID: "p1", Name: "Soap", UnitPrice: naira(1000)}, 2)
	in := validInput()
	in.Date = "2026-10-20"

	data, err := json.Marshal(NewBookingRequest(in, cart, "cid_1"))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"name": "Ada",
		"phone": "08031234567",
		"date": "2026-10-20",
		"services": [{"service":"Wash","price":"500"}],
		"items": [{"_id":"p1","name":"Soap","unitPrice":"1000","qty":2,"subtotal":"2000"}],
		"customerCid": "cid_1",
		"orderSummary": {
			"items": [
				{"type":"item","productId":"p1","name":"Soap","qty":2,"unitPrice":"1000","subtotal":"2000"},
				{"type":"service","name":"Wash","qty":1,"unitPrice":"500","subtotal":"500"}
			],
			"subtotal": "2000", "tax": "0", "shipping": "0",
			"itemsTotal": "2000", "servicesTotal": "500", "total": "2500",
			"store": "Acme"
		},
		"service": "Wash",
		"store": "Acme"
	}`, string(data))
}

func TestNewReceipt(t *testing.T) {
	req := NewBookingRequest(validInput(), nil, "cid_9")
	r := NewReceipt("b-1", req, fixedNow)

	assert.Equal(t, "b-1", r.OrderID)
	assert.Equal(t, "cid_9", r.ClientID)
	assert.True(t, r.Total.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, fixedNow, r.CreatedAt)
}
