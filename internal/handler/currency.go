package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/handler/dto"
	"github.com/fxgate/fxgate/internal/service"
)

// CurrencyHandler handles the currency endpoints. Every route runs behind
// ResolveCaller, the rate limits and RequireCaller.
type CurrencyHandler struct {
	svc    *service.ConversionService
	logger *slog.Logger
}

// NewCurrencyHandler creates a new CurrencyHandler.
func NewCurrencyHandler(svc *service.ConversionService, logger *slog.Logger) *CurrencyHandler {
	return &CurrencyHandler{svc: svc, logger: logger}
}

// Currencies handles GET /currency/currencies. It costs no credits.
func (h *CurrencyHandler) Currencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.svc.Currencies(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CurrencyListResponse{Currencies: currencies})
}

// Convert handles GET /currency/convert.
func (h *CurrencyHandler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := amountParam(q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	caller := auth.MustCallerFromContext(r.Context())
	result, err := h.svc.Convert(r.Context(), caller, q.Get("from_currency"), q.Get("to_currency"), amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Historical handles GET /currency/convert/historical.
func (h *CurrencyHandler) Historical(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := amountParam(q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	start, err := dateParam(q, "start_date")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	end, err := dateParam(q, "end_date")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	caller := auth.MustCallerFromContext(r.Context())
	result, err := h.svc.ConvertHistorical(r.Context(), caller, q.Get("from_currency"), q.Get("to_currency"), amount, start, end)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func amountParam(q url.Values) (float64, error) {
	raw := q.Get("amount")
	if raw == "" {
		return 0, &service.ValidationError{Field: "amount", Message: "amount is required"}
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &service.ValidationError{Field: "amount", Message: "amount must be a number"}
	}
	return amount, nil
}

func dateParam(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, &service.ValidationError{Field: name, Message: name + " is required"}
	}
	return service.ParseDate(name, raw)
}
