package associate

import (
	"database/sql"
	"strings"
	"time"
)

// Associate represents a temp worker reachable by SMS.
type Associate struct {
	ID        int64
	FirstName string
	LastName  sql.NullString
	Phone     string // canonical digit form, see NormalizePhone
	OptedOut  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizePhone reduces a provider-formatted phone number to the canonical
// form stored on associates: channel prefixes like "whatsapp:" are stripped,
// every non-digit is dropped, and an 11-digit number with a leading US country
// code loses the leading 1.
func NormalizePhone(raw string) string {
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		raw = raw[i+1:]
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}
