package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompact(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Mama's Kitchen", "mamakitchen"},
		{"MAMA'S-KITCHEN", "mamakitchen"},
		{"mamas kitchen", "mamaskitchen"},
		{"Shop-Rite 24/7", "shoprite247"},
		{"It'sy Store", "itsystore"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compact(tt.input))
		})
	}
}

func TestMatch(t *testing.T) {
	stores := []string{"Acme Superstore", "Acme", "Bola's Mart", "???"}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"exact preferred over earlier containment", "acme", 1},
		{"possessive and case ignored", "BOLA'S MART", 2},
		{"candidate contains query", "superstore", 0},
		{"query contains candidate", "Bola Mart Ikeja", 2},
		{"no match", "Shoprite", -1},
		{"empty query", "   ", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.query, stores))
		})
	}
}

func TestMatch_NoCandidates(t *testing.T) {
	assert.Equal(t, -1, Match("acme", nil))
}
