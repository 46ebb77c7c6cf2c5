package service

import (
	"math"
	"net/mail"
	"strings"
	"time"
)

// Validation limits.
const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// MaxPasswordLength bounds hashing cost for hostile input.
	MaxPasswordLength = 256
	// MaxEmailLength matches the column width.
	MaxEmailLength = 320

	dateLayout = "2006-01-02"
)

// NormalizeCurrency upper-cases a currency code and checks it is three ASCII letters.
func NormalizeCurrency(field, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", invalid(field, "%s must be a 3-letter currency code", field)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", invalid(field, "%s must be a 3-letter currency code", field)
		}
	}
	return code, nil
}

// ValidateAmount requires a finite positive amount.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return invalid("amount", "amount must be a positive number")
	}
	return nil
}

// checkConverted rejects a converted amount that overflowed float64.
func checkConverted(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrAmountTooLarge
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > MaxEmailLength {
		return "", invalid("email", "a valid email address is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", invalid("email", "a valid email address is required")
	}
	return email, nil
}

// ValidatePassword enforces length bounds.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", "password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return invalid("password", "password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, invalid(field, "%s must be a date in YYYY-MM-DD format", field)
	}
	return t, nil
}

// dateOf truncates t to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
