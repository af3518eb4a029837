package services

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrWeakPassword     = errors.New("password missing required character classes")
)

const passwordMinLength = 8

// passwordSpecialChars is the set of characters that satisfy the special
// character requirement.
const passwordSpecialChars = "!@#$%^&*()_+={}[]|\\;:'\",.<>?/~`"

// ValidatePassword checks registration passwords before they reach the auth
// provider. A valid password has at least eight characters and contains a
// lowercase letter, an uppercase letter, a digit, and one of
// passwordSpecialChars. There is no maximum length.
func ValidatePassword(password string) error {
	if len(password) < passwordMinLength {
		return ErrPasswordTooShort
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			special = true
		}
	}

	if !lower || !upper || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}
