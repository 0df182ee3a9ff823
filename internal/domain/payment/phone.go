package payment

import (
	"regexp"
	"strings"
)

// PhoneDigits is the length of a valid subscriber number, leading zero included.
const PhoneDigits = 9

var phonePattern = regexp.MustCompile(`^0(74|77)\d{6}$`)

// PhoneNumber is a normalized, validated mobile-money subscriber number.
type PhoneNumber string

func (p PhoneNumber) String() string { return string(p) }

// Normalize drops every non-digit character from raw.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeInput is applied on every keystroke: digits only, capped at PhoneDigits.
func SanitizeInput(raw string) string {
	digits := Normalize(raw)
	if len(digits) > PhoneDigits {
		digits = digits[:PhoneDigits]
	}
	return digits
}

// ParsePhone normalizes raw and validates it against the 074/077 numbering plan.
func ParsePhone(raw string) (PhoneNumber, error) {
	digits := Normalize(raw)
	if digits == "" {
		return "", ErrMissingInput
	}
	if !phonePattern.MatchString(digits) {
		return "", ErrInvalidFormat
	}
	return PhoneNumber(digits), nil
}
