package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fxgate/fxgate/internal/admission"
	"github.com/fxgate/fxgate/internal/upstream"
)

// Service errors.
var (
	ErrEmailExists        = errors.New("Email already registered")
	ErrPlanNotFound       = errors.New("Plan not found")
	ErrInvalidCredentials = errors.New("Incorrect email or password")
	ErrInvalidToken       = errors.New("Could not validate credentials")
	ErrInvalidAPIKey      = errors.New("Invalid API key")

	ErrInvalidDateRange = &ValidationError{Field: "start_date", Message: "Start date must be before or equal to end date"}
	ErrAmountTooLarge   = &ValidationError{Field: "amount", Message: "amount too large"}
)

// Error codes used in the response envelope.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeNoData              = "NO_DATA"
	CodeEmailExists         = "EMAIL_EXISTS"
	CodePlanNotFound        = "PLAN_NOT_FOUND"
	CodeUnsupportedCurrency = "UNSUPPORTED_CURRENCY"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUpstream            = "UPSTREAM_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// ValidationError is malformed or contradictory input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NoDataError is an empty historical result. The message names any bound
// that was clamped and the value it was clamped to.
type NoDataError struct {
	OriginalStart, OriginalEnd time.Time
	Start, End                 time.Time
}

func (e *NoDataError) Error() string {
	startMoved := !e.OriginalStart.Equal(e.Start)
	endMoved := !e.OriginalEnd.Equal(e.End)

	var note string
	switch {
	case startMoved && endMoved:
		note = fmt.Sprintf("Note: Your dates were adjusted from %s - %s to %s - %s to comply with API limits.",
			day(e.OriginalStart), day(e.OriginalEnd), day(e.Start), day(e.End))
	case startMoved:
		note = fmt.Sprintf("Note: Your start date was adjusted from %s to %s because the API only provides data for the past year.",
			day(e.OriginalStart), day(e.Start))
	case endMoved:
		note = fmt.Sprintf("Note: Your end date was adjusted from %s to %s because future dates are not available.",
			day(e.OriginalEnd), day(e.End))
	default:
		note = "No historical data found for this date range and currency pair."
	}
	return "No historical data available. " + note
}

// Classification is how an error is reported to callers.
type Classification struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

// Classify maps an error to its status code, envelope code and public message.
// Unknown errors become a 500 with a generic message.
func Classify(err error) Classification {
	var (
		ve *ValidationError
		nd *NoDataError
		rl *admission.RateLimitedError
		ic *admission.InsufficientCreditsError
		ue *upstream.Error
	)

	switch {
	case errors.As(err, &ve):
		return Classification{Status: http.StatusBadRequest, Code: CodeValidation, Message: ve.Message}
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidAPIKey):
		return Classification{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: rootMessage(err)}
	case errors.As(err, &ic):
		return Classification{Status: http.StatusPaymentRequired, Code: CodeInsufficientCredits, Message: ic.Error()}
	case errors.As(err, &nd):
		return Classification{Status: http.StatusNotFound, Code: CodeNoData, Message: nd.Error()}
	case errors.Is(err, ErrEmailExists):
		return Classification{Status: http.StatusConflict, Code: CodeEmailExists, Message: ErrEmailExists.Error()}
	case errors.Is(err, ErrPlanNotFound):
		return Classification{Status: http.StatusBadRequest, Code: CodePlanNotFound, Message: ErrPlanNotFound.Error()}
	case errors.As(err, &rl):
		return Classification{Status: http.StatusTooManyRequests, Code: CodeRateLimited, Message: rl.Error(), Retryable: true}
	case errors.Is(err, upstream.ErrUnsupportedCurrency) && errors.As(err, &ue):
		return Classification{Status: http.StatusBadRequest, Code: CodeUnsupportedCurrency, Message: ue.Detail}
	case errors.As(err, &ue):
		return Classification{Status: http.StatusInternalServerError, Code: CodeUpstream,
			Message: "Exchange rate API error: " + ue.Detail, Retryable: ue.Retryable}
	default:
		return Classification{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error"}
	}
}

// rootMessage returns the message of the sentinel at the bottom of a wrap chain.
func rootMessage(err error) string {
	for _, sentinel := range []error{ErrInvalidCredentials, ErrInvalidToken, ErrInvalidAPIKey} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func day(t time.Time) string {
	return t.Format(dateLayout)
}
