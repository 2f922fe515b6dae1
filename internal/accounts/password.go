package accounts

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-admin/aegis/internal/shared"
)

const minPasswordLength = 8

// ValidatePassword applies the account password policy and returns every
// violated rule as a structured error list. The numeric-sequence rule is
// layered on top of the baseline rules, not a replacement for them.
func ValidatePassword(password string) shared.ErrorList {
	var errs shared.ErrorList

	if len(password) < minPasswordLength {
		errs = append(errs, "The password must be at least 8 characters long.")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		errs = append(errs, "The password must contain at least one letter.")
	}
	if !hasDigit {
		errs = append(errs, "The password must contain at least one digit.")
	}
	if strings.Contains(password, "123") {
		errs = append(errs, "The password cannot contain a numeric sequence like '123'.")
	}
	return errs
}

// HashPassword produces a bcrypt hash of the plaintext.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
