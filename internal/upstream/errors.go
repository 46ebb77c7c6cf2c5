package upstream

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCurrency is returned when the provider has no quote for a currency.
var ErrUnsupportedCurrency = errors.New("currency not supported")

// Error is a failed provider call. Detail never contains the provider API key.
type Error struct {
	Op         string // "codes", "latest" or "history"
	StatusCode int    // HTTP status, 0 for transport failures
	Code       string // provider error type, e.g. "unsupported-code"
	Detail     string
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("upstream %s: %s", e.Op, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a provider failure worth retrying.
func IsRetryable(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Retryable
}
