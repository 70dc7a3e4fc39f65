// Package redact masks personal data before it reaches logs.
package redact

import (
	"log/slog"
	"strings"
)

// Phone keeps only the last four digits: "+234 803 555 1234" → "****1234".
// Input without digits becomes "REDACTED".
func Phone(v string) string {
	var digits strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return "REDACTED"
	}
	if len(d) > 4 {
		d = d[len(d)-4:]
	}
	return "****" + d
}

// Email keeps the domain: "ada@example.com" → "***@example.com".
func Email(v string) string {
	local, domain, ok := strings.Cut(v, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "REDACTED_EMAIL"
	}
	return "***@" + domain
}

// PhoneAttr is a slog attribute carrying a masked phone number.
func PhoneAttr(key, v string) slog.Attr {
	return slog.String(key, Phone(v))
}
