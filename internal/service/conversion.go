package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/fxgate/fxgate/internal/admission"
	"github.com/fxgate/fxgate/internal/cache"
	"github.com/fxgate/fxgate/internal/metrics"
	"github.com/fxgate/fxgate/internal/model"
)

// Request log endpoints.
const (
	EndpointConvert    = "/convert"
	EndpointHistorical = "/convert/historical"
)

// HistoryLookback is how far back the provider serves historical data.
const HistoryLookback = 365 * 24 * time.Hour

// Clock returns the current time.
type Clock func() time.Time

// RateProvider fetches exchange rates.
type RateProvider interface {
	ListCurrencies(ctx context.Context) (map[string]string, error)
	LatestRate(ctx context.Context, from, to string) (float64, error)
	HistoricalRates(ctx context.Context, from, to string, start, end time.Time) (map[string]map[string]float64, error)
}

// CurrencyCache stores the supported currency list.
type CurrencyCache interface {
	GetCurrencies(ctx context.Context) (map[string]string, error)
	SetCurrencies(ctx context.Context, currencies map[string]string, ttl time.Duration) error
}

// LogStore appends request logs that carry no debit.
type LogStore interface {
	AppendRequestLog(ctx context.Context, log *model.RequestLog) error
}

// ConversionOptions configures a ConversionService.
type ConversionOptions struct {
	Provider  RateProvider
	Admission *admission.Controller
	Logs      LogStore
	Cache     CurrencyCache // optional
	CacheTTL  time.Duration
	Recorder  metrics.Recorder
	Logger    *slog.Logger
	Clock     Clock
}

// ConversionService runs billable conversions through admission control.
type ConversionService struct {
	provider  RateProvider
	admission *admission.Controller
	logs      LogStore
	cache     CurrencyCache
	cacheTTL  time.Duration
	recorder  metrics.Recorder
	logger    *slog.Logger
	now       Clock
}

// NewConversionService creates a new ConversionService.
func NewConversionService(opts ConversionOptions) *ConversionService {
	s := &ConversionService{
		provider:  opts.Provider,
		admission: opts.Admission,
		logs:      opts.Logs,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		now:       opts.Clock,
	}
	if s.recorder == nil {
		s.recorder = metrics.NewNoop()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "conversion")
	if s.now == nil {
		s.now = time.Now
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = time.Hour
	}
	return s
}

// Currencies returns the supported currency codes and names. The list is
// read through the cache when one is configured; cache failures fall back
// to the provider.
func (s *ConversionService) Currencies(ctx context.Context) (map[string]string, error) {
	if s.cache != nil {
		currencies, err := s.cache.GetCurrencies(ctx)
		if err == nil {
			s.recorder.IncCurrencyCacheHit()
			return currencies, nil
		}
		s.recorder.IncCurrencyCacheMiss()
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("currency cache read failed", "error", err)
		}
	}

	currencies, err := s.provider.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCurrencies(ctx, currencies, s.cacheTTL); err != nil {
			s.logger.Warn("currency cache write failed", "error", err)
		}
	}
	return currencies, nil
}

// Convert converts amount at the latest rate and charges the caller.
// Nothing is debited unless the provider answers.
func (s *ConversionService) Convert(ctx context.Context, caller *model.User, from, to string, amount float64) (*model.ConversionResult, error) {
	from, to, err := normalizePair(from, to, amount)
	if err != nil {
		return nil, err
	}
	if err := s.admission.CheckCredits(caller, admission.OpConvert); err != nil {
		return nil, err
	}

	requestData := fmt.Sprintf("from=%s, to=%s, amount=%s", from, to, formatFloat(amount))

	rate, err := s.provider.LatestRate(ctx, from, to)
	if err != nil {
		s.logFailure(ctx, caller, EndpointConvert, requestData, err)
		return nil, err
	}

	result := &model.ConversionResult{
		FromCurrency:    from,
		ToCurrency:      to,
		Amount:          amount,
		ConvertedAmount: amount * rate,
		Rate:            rate,
	}
	if err := checkConverted(result.ConvertedAmount); err != nil {
		s.logFailure(ctx, caller, EndpointConvert, requestData, err)
		return nil, err
	}

	log := &model.RequestLog{
		UserID:       caller.ID,
		Endpoint:     EndpointConvert,
		RequestData:  requestData,
		ResponseData: fmt.Sprintf("rate=%s, converted_amount=%s", formatFloat(rate), formatFloat(result.ConvertedAmount)),
		StatusCode:   200,
	}
	if _, err := s.admission.Commit(ctx, caller, admission.OpConvert, log); err != nil {
		s.logFailure(ctx, caller, EndpointConvert, requestData, err)
		return nil, err
	}

	s.recorder.IncConversion("latest")
	return result, nil
}

// ConvertHistorical converts amount at each daily rate in [start, end] and
// charges the caller once. The range is clamped to the provider's window:
// end to today, start to one year back.
func (s *ConversionService) ConvertHistorical(ctx context.Context, caller *model.User, from, to string, amount float64, start, end time.Time) (*model.HistoricalResult, error) {
	from, to, err := normalizePair(from, to, amount)
	if err != nil {
		return nil, err
	}
	start, end = dateOf(start), dateOf(end)
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}
	if err := s.admission.CheckCredits(caller, admission.OpHistorical); err != nil {
		return nil, err
	}

	today := dateOf(s.now())
	adjStart, adjEnd := start, end
	if adjEnd.After(today) {
		adjEnd = today
	}
	if earliest := today.Add(-HistoryLookback); adjStart.Before(earliest) {
		adjStart = earliest
	}

	requestData := fmt.Sprintf("from=%s, to=%s, amount=%s, start_date=%s, end_date=%s",
		from, to, formatFloat(amount), day(adjStart), day(adjEnd))
	noData := &NoDataError{OriginalStart: start, OriginalEnd: end, Start: adjStart, End: adjEnd}

	// A range that lies entirely outside the window has nothing to ask for.
	if adjStart.After(adjEnd) {
		s.logFailure(ctx, caller, EndpointHistorical, requestData, noData)
		return nil, noData
	}

	history, err := s.provider.HistoricalRates(ctx, from, to, adjStart, adjEnd)
	if err != nil {
		s.logFailure(ctx, caller, EndpointHistorical, requestData, err)
		return nil, err
	}

	result := &model.HistoricalResult{
		FromCurrency:     from,
		ToCurrency:       to,
		Amount:           amount,
		Rates:            make(map[string]map[string]float64, len(history)),
		ConvertedAmounts: make(map[string]float64, len(history)),
	}
	for date, rates := range history {
		rate, ok := rates[to]
		if !ok {
			continue
		}
		converted := amount * rate
		if err := checkConverted(converted); err != nil {
			s.logFailure(ctx, caller, EndpointHistorical, requestData, err)
			return nil, err
		}
		result.Rates[date] = rates
		result.ConvertedAmounts[date] = converted
	}
	if len(result.ConvertedAmounts) == 0 {
		s.logFailure(ctx, caller, EndpointHistorical, requestData, noData)
		return nil, noData
	}

	log := &model.RequestLog{
		UserID:       caller.ID,
		Endpoint:     EndpointHistorical,
		RequestData:  requestData,
		ResponseData: "dates_returned=" + strconv.Itoa(len(result.ConvertedAmounts)),
		StatusCode:   200,
	}
	if _, err := s.admission.Commit(ctx, caller, admission.OpHistorical, log); err != nil {
		s.logFailure(ctx, caller, EndpointHistorical, requestData, err)
		return nil, err
	}

	s.recorder.IncConversion("historical")
	return result, nil
}

// SortedDates returns the dates of a historical result in ascending order.
func SortedDates(r *model.HistoricalResult) []string {
	dates := make([]string, 0, len(r.ConvertedAmounts))
	for date := range r.ConvertedAmounts {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// logFailure appends an unbilled log row for a request that reached the
// provider stage. A failed append is logged and otherwise ignored so the
// caller still sees the original error.
func (s *ConversionService) logFailure(ctx context.Context, caller *model.User, endpoint, requestData string, cause error) {
	c := Classify(cause)
	entry := &model.RequestLog{
		UserID:       caller.ID,
		Endpoint:     endpoint,
		RequestData:  requestData,
		ResponseData: "error=" + c.Message,
		StatusCode:   c.Status,
	}
	if err := s.logs.AppendRequestLog(ctx, entry); err != nil {
		s.logger.Error("append request log failed",
			"user_id", caller.ID,
			"endpoint", endpoint,
			"error", err,
		)
	}
	s.logger.Info("conversion failed",
		"user_id", caller.ID,
		"endpoint", endpoint,
		"status", c.Status,
		"code", c.Code,
	)
}

func normalizePair(from, to string, amount float64) (string, string, error) {
	from, err := NormalizeCurrency("from_currency", from)
	if err != nil {
		return "", "", err
	}
	to, err = NormalizeCurrency("to_currency", to)
	if err != nil {
		return "", "", err
	}
	if err := ValidateAmount(amount); err != nil {
		return "", "", err
	}
	return from, to, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
