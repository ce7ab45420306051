package resolver

import (
	"strings"

	"github.com/pbx-ops/recsync/internal/model"
)

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCustomer reduces a raw number string to a valid external number:
// exactly 10 or 11 digits. Runs longer than 11 digits are truncated to the
// last 11 when that leaves a leading "1", otherwise to the last 10. Fewer
// than 10 digits yields the sentinel. The function is idempotent.
func NormalizeCustomer(raw string) string {
	digits := DigitsOnly(raw)
	if len(digits) > 11 {
		last11 := digits[len(digits)-11:]
		if strings.HasPrefix(last11, "1") {
			digits = last11
		} else {
			digits = digits[len(digits)-10:]
		}
	}
	if len(digits) < 10 {
		return model.Unknown
	}
	return digits
}

// allDigits reports whether s is non-empty and purely numeric.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
