// Package email normalizes member email addresses.
package email

import (
	"net/mail"
	"strings"

	dErrors "pension/pkg/domain-errors"
)

const maxLength = 254

// Normalize trims and lower-cases s and checks it is a bare address
// ("a@b.c", no display name).
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(s) > maxLength {
		return "", dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}
	at := strings.LastIndexByte(s, '@')
	if !strings.Contains(s[at+1:], ".") {
		return "", dErrors.New(dErrors.CodeValidation, "email domain is not valid")
	}
	return strings.ToLower(s), nil
}

// Equal compares two addresses case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
