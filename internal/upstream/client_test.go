package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxgate/fxgate/internal/metrics"
)

const testKey = "secret-provider-key"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.InMemoryRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rec := metrics.NewInMemory()
	return New(Options{
		BaseURL:  srv.URL + "/v6",
		APIKey:   testKey,
		Timeout:  2 * time.Second,
		Recorder: rec,
	}), rec
}

func TestListCurrencies(t *testing.T) {
	t.Parallel()

	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v6/"+testKey+"/codes", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":"success","supported_codes":[["USD","United States Dollar"],["EUR","Euro"],["bad"]]}`))
	})

	got, err := c.ListCurrencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"USD": "United States Dollar", "EUR": "Euro"}, got)
	assert.Equal(t, uint64(1), rec.Snapshot().UpstreamCalls["codes|success"])
}

func TestLatestRate(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v6/"+testKey+"/latest/USD", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"EUR":1.0823}}`))
	})

	rate, err := c.LatestRate(context.Background(), "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 1.0823, rate)
}

func TestLatestRate_MissingTarget(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"USD":1}}`))
	})

	_, err := c.LatestRate(context.Background(), "USD", "XYZ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	assert.Contains(t, err.Error(), "Currency XYZ not supported")
}

func TestLatestRate_ResultError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
	})

	_, err := c.LatestRate(context.Background(), "ABC", "EUR")
	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "unsupported-code", ue.Code)
	assert.False(t, ue.Retryable)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestHistoricalRates(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v6/"+testKey+"/history/USD", r.URL.Path)
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2026-01-03", r.URL.Query().Get("end_date"))
		_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{
			"2026-01-01":{"EUR":0.91,"GBP":0.79},
			"2026-01-02":{"GBP":0.78},
			"2026-01-03":{"EUR":0.92}
		}}`))
	})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	got, err := c.HistoricalRates(context.Background(), "USD", "EUR", start, end)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{
		"2026-01-01": {"EUR": 0.91},
		"2026-01-03": {"EUR": 0.92},
	}, got)
}

func TestHistoricalRates_NotFoundIsEmpty(t *testing.T) {
	t.Parallel()

	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	got, err := c.HistoricalRates(context.Background(), "USD", "EUR", time.Now(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, uint64(1), rec.Snapshot().UpstreamCalls["history|no_data"])
}

func TestHistoricalRates_ServerErrorRaises(t *testing.T) {
	t.Parallel()

	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"result":"error","error":"internal"}`))
	})

	_, err := c.HistoricalRates(context.Background(), "USD", "EUR", time.Now(), time.Now())
	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
	assert.Equal(t, "API error: internal", ue.Detail)
	assert.True(t, ue.Retryable)
	assert.Equal(t, uint64(1), rec.Snapshot().UpstreamCalls["history|error"])
}

func TestHistoricalRates_ResultHints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want string
	}{
		{code: "unsupported_date", want: "API Error: unsupported_date. The API may not support data this far back."},
		{code: "time-frame-too-large", want: ". The time frame is too large for this API."},
		{code: "quota-reached", want: "API Error: quota-reached"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"result":"error","error":"` + tt.code + `"}`))
			})
			_, err := c.HistoricalRates(context.Background(), "USD", "EUR", time.Now(), time.Now())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStatusError_PlainTextBody(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	})

	_, err := c.ListCurrencies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error: bad gateway")
	assert.True(t, IsRetryable(err))
}

func TestMalformedPayload(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.LatestRate(context.Background(), "USD", "EUR")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid JSON response from API")
}

func TestTimeoutIsRetryableAndRedacted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := New(Options{BaseURL: srv.URL, APIKey: testKey, Timeout: 50 * time.Millisecond})

	_, err := c.LatestRate(context.Background(), "USD", "EUR")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.NotContains(t, err.Error(), testKey)
}

func TestConnectionRefusedIsRedacted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(Options{BaseURL: addr, APIKey: testKey, Timeout: time.Second})
	_, err := c.ListCurrencies(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.False(t, strings.Contains(err.Error(), testKey), "error leaks API key: %v", err)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := New(Options{BaseURL: "http://example.test/v6"})
	assert.Equal(t, "http://example.test/v6/", c.baseURL)
	assert.NotNil(t, c.http)
	assert.NotNil(t, c.recorder)

	c = New(Options{})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
