package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxgate/fxgate/internal/admission"
	"github.com/fxgate/fxgate/internal/cache"
	"github.com/fxgate/fxgate/internal/metrics"
	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/ratelimit"
	"github.com/fxgate/fxgate/internal/testutil/fakes"
	"github.com/fxgate/fxgate/internal/upstream"
)

// 2026-03-15 12:00 UTC.
var convNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type convEnv struct {
	svc      *ConversionService
	ctrl     *admission.Controller
	store    *fakes.MemoryStore
	provider *fakes.StubProvider
	recorder *metrics.InMemoryRecorder
	plan     model.Plan
}

func newConvEnv(t *testing.T, currencyCache CurrencyCache) *convEnv {
	t.Helper()

	store := fakes.NewMemoryStore()
	plan := store.AddPlan(model.Plan{Name: "Free", RateLimit: 10, InitialCredits: 100})
	provider := &fakes.StubProvider{Rate: 1.0823}
	rec := metrics.NewInMemory()
	clock := func() time.Time { return convNow }

	ctrl := admission.NewController(admission.Options{
		Limiter:  ratelimit.NewMemory().WithClock(clock),
		Store:    store,
		Costs:    admission.CostTable{admission.OpConvert: 1, admission.OpHistorical: 1},
		Recorder: rec,
		Now:      clock,
	})
	svc := NewConversionService(ConversionOptions{
		Provider:  provider,
		Admission: ctrl,
		Logs:      store,
		Cache:     currencyCache,
		CacheTTL:  time.Hour,
		Recorder:  rec,
		Clock:     clock,
	})
	return &convEnv{svc: svc, ctrl: ctrl, store: store, provider: provider, recorder: rec, plan: plan}
}

func (e *convEnv) user(t *testing.T, credits int) *model.User {
	t.Helper()
	ctx := context.Background()
	u := &model.User{
		Email:    "user@example.com",
		APIKey:   "fx_test",
		Credits:  credits,
		PlanID:   e.plan.ID,
		IsActive: true,
	}
	require.NoError(t, e.store.CreateUser(ctx, u))
	stored, err := e.store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	return stored
}

func TestConvert_Success(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)

	res, err := env.svc.Convert(context.Background(), user, "usd", "EUR", 100)
	require.NoError(t, err)

	assert.Equal(t, "USD", res.FromCurrency)
	assert.Equal(t, "EUR", res.ToCurrency)
	assert.Equal(t, 1.0823, res.Rate)
	assert.InDelta(t, 108.23, res.ConvertedAmount, 1e-9)
	assert.Nil(t, res.Date)

	assert.Equal(t, 4, env.store.Credits(user.ID))
	assert.Equal(t, 4, user.Credits)

	logs := env.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, EndpointConvert, logs[0].Endpoint)
	assert.Equal(t, "from=USD, to=EUR, amount=100", logs[0].RequestData)
	assert.Equal(t, "rate=1.0823, converted_amount=108.23", logs[0].ResponseData)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)
	assert.Equal(t, 1, logs[0].CreditsDeducted)

	snap := env.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.Conversions["latest"])
	assert.Equal(t, uint64(1), snap.CreditsDebited)
}

func TestConvert_ValidationSkipsEverything(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
		amount   float64
	}{
		{"short code", "US", "EUR", 1},
		{"digits", "US1", "EUR", 1},
		{"zero amount", "USD", "EUR", 0},
		{"negative amount", "USD", "EUR", -3},
	}
	for _, tt := range tests {
		_, err := env.svc.Convert(ctx, user, tt.from, tt.to, tt.amount)
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve), "%s: expected ValidationError, got %v", tt.name, err)
	}

	assert.Zero(t, env.provider.TotalCalls())
	assert.Equal(t, 5, env.store.Credits(user.ID))
	assert.Empty(t, env.store.Logs())
}

func TestConvert_NoCreditsSkipsProvider(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 0)

	_, err := env.svc.Convert(context.Background(), user, "USD", "EUR", 10)
	var ic *admission.InsufficientCreditsError
	require.True(t, errors.As(err, &ic), "expected InsufficientCreditsError, got %v", err)
	assert.False(t, ic.AtCommit)
	assert.Equal(t, "Not enough credits. Required: 1, Available: 0", err.Error())

	assert.Zero(t, env.provider.LatestCalls())
	assert.Empty(t, env.store.Logs())
}

func TestConvert_UpstreamFailureLogsWithoutDebit(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)
	env.provider.RateErr = fakes.RetryableError(upstream.OpLatest)

	_, err := env.svc.Convert(context.Background(), user, "USD", "EUR", 10)
	require.Error(t, err)
	c := Classify(err)
	assert.Equal(t, http.StatusInternalServerError, c.Status)
	assert.Equal(t, CodeUpstream, c.Code)
	assert.True(t, c.Retryable)

	assert.Equal(t, 5, env.store.Credits(user.ID))
	logs := env.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, http.StatusInternalServerError, logs[0].StatusCode)
	assert.Zero(t, logs[0].CreditsDeducted)
	assert.Contains(t, logs[0].ResponseData, "error=Exchange rate API error")
}

func TestConvert_UnsupportedCurrency(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)
	env.provider.RateErr = &upstream.Error{
		Op:     upstream.OpLatest,
		Detail: "Currency XYZ not supported",
		Err:    upstream.ErrUnsupportedCurrency,
	}

	_, err := env.svc.Convert(context.Background(), user, "USD", "XYZ", 10)
	c := Classify(err)
	assert.Equal(t, http.StatusBadRequest, c.Status)
	assert.Equal(t, CodeUnsupportedCurrency, c.Code)
	assert.Equal(t, "Currency XYZ not supported", c.Message)
	assert.Equal(t, 5, env.store.Credits(user.ID))
}

func TestConvert_DebitRaceLost(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 0)
	// A stale in-memory balance passes the pre-check but the store has nothing.
	user.Credits = 3

	_, err := env.svc.Convert(context.Background(), user, "USD", "EUR", 10)
	var ic *admission.InsufficientCreditsError
	require.True(t, errors.As(err, &ic), "expected InsufficientCreditsError, got %v", err)
	assert.True(t, ic.AtCommit)

	assert.Equal(t, 1, env.provider.LatestCalls())
	assert.Equal(t, 0, env.store.Credits(user.ID))
	logs := env.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, http.StatusPaymentRequired, logs[0].StatusCode)
	assert.Zero(t, logs[0].CreditsDeducted)
}

func TestConvert_OverflowingResultIsNotBilled(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)

	_, err := env.svc.Convert(context.Background(), user, "USD", "EUR", 1.7e308)
	require.ErrorIs(t, err, ErrAmountTooLarge)
	assert.Equal(t, http.StatusBadRequest, Classify(err).Status)

	assert.Equal(t, 5, env.store.Credits(user.ID))
	assert.Equal(t, 5, user.Credits)

	logs := env.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, http.StatusBadRequest, logs[0].StatusCode)
	assert.Equal(t, 0, logs[0].CreditsDeducted)
	assert.Equal(t, "error=amount too large", logs[0].ResponseData)

	snap := env.recorder.Snapshot()
	assert.Zero(t, snap.CreditsDebited)
	assert.Zero(t, snap.Conversions["latest"])
}

func TestConvertHistorical_OverflowingResultIsNotBilled(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)
	env.provider.History = map[string]map[string]float64{
		"2026-03-01": {"EUR": 1.08},
		"2026-03-02": {"EUR": 2},
	}

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := env.svc.ConvertHistorical(context.Background(), user, "USD", "EUR", 1e308, start, end)
	require.ErrorIs(t, err, ErrAmountTooLarge)

	assert.Equal(t, 5, env.store.Credits(user.ID))
	logs := env.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, EndpointHistorical, logs[0].Endpoint)
	assert.Equal(t, http.StatusBadRequest, logs[0].StatusCode)
	assert.Equal(t, 0, logs[0].CreditsDeducted)
	assert.Zero(t, env.recorder.Snapshot().Conversions["historical"])
}

func TestConvertHistorical_Success(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)
	env.provider.History = map[string]map[string]float64{
		"2026-03-01": {"EUR": 1.08},
		"2026-03-02": {"EUR": 1.1},
		"2026-03-03": {"GBP": 0.8},
	}

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	res, err := env.svc.ConvertHistorical(context.Background(), user, "USD", "EUR", 50, start, end)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-03-01", "2026-03-02"}, SortedDates(res))
	assert.InDelta(t, 54.0, res.ConvertedAmounts["2026-03-01"], 1e-9)
	assert.InDelta(t, 55.0, res.ConvertedAmounts["2026-03-02"], 1e-9)
	assert.Equal(t, 1.08, res.Rates["2026-03-01"]["EUR"])

	assert.Equal(t, 4, env.store.Credits(user.ID))
	logs := env.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, EndpointHistorical, logs[0].Endpoint)
	assert.Equal(t, "from=USD, to=EUR, amount=50, start_date=2026-03-01, end_date=2026-03-03", logs[0].RequestData)
	assert.Equal(t, "dates_returned=2", logs[0].ResponseData)
}

func TestConvertHistorical_InvertedRange(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 0)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := env.svc.ConvertHistorical(context.Background(), user, "USD", "EUR", 10, start, end)

	// Reported ahead of the credit check even with an empty balance.
	require.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Equal(t, "Start date must be before or equal to end date", err.Error())
	assert.Zero(t, env.provider.TotalCalls())
	assert.Empty(t, env.store.Logs())
}

func TestConvertHistorical_ClampsRange(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)
	env.provider.History = map[string]map[string]float64{"2026-03-10": {"EUR": 1}}

	start := convNow.AddDate(0, 0, -400)
	end := convNow.AddDate(0, 0, 10)
	_, err := env.svc.ConvertHistorical(context.Background(), user, "USD", "EUR", 1, start, end)
	require.NoError(t, err)

	calls := env.provider.HistoryCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "2025-03-15", calls[0].Start.Format("2006-01-02"))
	assert.Equal(t, "2026-03-15", calls[0].End.Format("2006-01-02"))
}

func TestConvertHistorical_NoDataMessages(t *testing.T) {
	t.Parallel()

	d := func(s string) time.Time {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			panic(err)
		}
		return t
	}

	tests := []struct {
		name       string
		start, end time.Time
		want       string
	}{
		{
			name:  "both adjusted",
			start: convNow.AddDate(0, 0, -400),
			end:   convNow.AddDate(0, 0, 10),
			want: "No historical data available. Note: Your dates were adjusted from " +
				"2025-02-08 - 2026-03-25 to 2025-03-15 - 2026-03-15 to comply with API limits.",
		},
		{
			name:  "start adjusted",
			start: d("2025-01-01"),
			end:   d("2025-06-01"),
			want: "No historical data available. Note: Your start date was adjusted from " +
				"2025-01-01 to 2025-03-15 because the API only provides data for the past year.",
		},
		{
			name:  "end adjusted",
			start: d("2026-03-01"),
			end:   d("2026-04-01"),
			want: "No historical data available. Note: Your end date was adjusted from " +
				"2026-04-01 to 2026-03-15 because future dates are not available.",
		},
		{
			name:  "not adjusted",
			start: d("2026-01-01"),
			end:   d("2026-01-31"),
			want:  "No historical data available. No historical data found for this date range and currency pair.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newConvEnv(t, nil)
			user := env.user(t, 5)

			_, err := env.svc.ConvertHistorical(context.Background(), user, "USD", "EUR", 10, tt.start, tt.end)
			var nd *NoDataError
			require.True(t, errors.As(err, &nd), "expected NoDataError, got %v", err)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, http.StatusNotFound, Classify(err).Status)

			assert.Equal(t, 5, env.store.Credits(user.ID))
			logs := env.store.Logs()
			require.Len(t, logs, 1)
			assert.Equal(t, http.StatusNotFound, logs[0].StatusCode)
			assert.Zero(t, logs[0].CreditsDeducted)
		})
	}
}

func TestConvertHistorical_FutureRangeSkipsProvider(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	user := env.user(t, 5)

	start := convNow.AddDate(0, 1, 0)
	end := convNow.AddDate(0, 2, 0)
	_, err := env.svc.ConvertHistorical(context.Background(), user, "USD", "EUR", 10, start, end)

	var nd *NoDataError
	require.True(t, errors.As(err, &nd), "expected NoDataError, got %v", err)
	assert.Empty(t, env.provider.HistoryCalls())
	assert.Equal(t, 5, env.store.Credits(user.ID))
}

func TestCurrencies_ReadThroughCache(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewFromClient(client, nil)

	env := newConvEnv(t, c)
	env.provider.Currencies = map[string]string{"USD": "United States Dollar", "EUR": "Euro"}
	ctx := context.Background()

	first, err := env.svc.Currencies(ctx)
	require.NoError(t, err)
	second, err := env.svc.Currencies(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.provider.CurrenciesCalls())

	snap := env.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.CurrencyCacheMisses)
	assert.Equal(t, uint64(1), snap.CurrencyCacheHits)
}

func TestCurrencies_WithoutCache(t *testing.T) {
	t.Parallel()
	env := newConvEnv(t, nil)
	env.provider.Currencies = map[string]string{"USD": "United States Dollar"}

	_, err := env.svc.Currencies(context.Background())
	require.NoError(t, err)
	_, err = env.svc.Currencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, env.provider.CurrenciesCalls())
}
