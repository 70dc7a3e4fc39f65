package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NairaSign prefixes every customer-facing amount.
const NairaSign = "₦"

// FormatNaira renders an amount as ₦1,234 or ₦1,234.50 when fractional.
func FormatNaira(amount decimal.Decimal) string {
	return NairaSign + GroupThousands(amount)
}

// GroupThousands renders an amount with comma thousand separators. Whole
// amounts carry no decimals; fractional amounts carry exactly two.
func GroupThousands(amount decimal.Decimal) string {
	var s string
	if amount.Equal(amount.Truncate(0)) {
		s = amount.StringFixed(0)
	} else {
		s = amount.StringFixed(2)
	}

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
