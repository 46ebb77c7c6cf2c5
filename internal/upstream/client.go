// Package upstream is the HTTP client for the exchangerate-api v6 provider.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fxgate/fxgate/internal/metrics"
)

const (
	// DefaultBaseURL is the exchangerate-api v6 endpoint.
	DefaultBaseURL = "https://v6.exchangerate-api.com/v6/"
	// DefaultTimeout bounds a whole provider call.
	DefaultTimeout = 10 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 5 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 8 * time.Second

	maxBodyBytes = 4 << 20
	dateLayout   = "2006-01-02"
)

// Provider operations, used in errors and metrics.
const (
	OpCodes   = "codes"
	OpLatest  = "latest"
	OpHistory = "history"
)

// NewHTTPClient creates an HTTP client for provider calls.
// It does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Recorder   metrics.Recorder
}

// Client calls the exchange-rate provider.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
	recorder metrics.Recorder
}

// New creates a provider client.
func New(opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(opts.Timeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Client{
		baseURL:  base,
		apiKey:   opts.APIKey,
		http:     httpClient,
		logger:   logger.With("component", "upstream"),
		recorder: recorder,
	}
}

type envelope struct {
	Result    string `json:"result"`
	ErrorType string `json:"error-type"`
	Error     string `json:"error"`
}

func (e envelope) errorCode() string {
	if e.ErrorType != "" {
		return e.ErrorType
	}
	return e.Error
}

type codesResponse struct {
	envelope
	SupportedCodes [][]string `json:"supported_codes"`
}

type latestResponse struct {
	envelope
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

type historyResponse struct {
	envelope
	ConversionRates map[string]map[string]float64 `json:"conversion_rates"`
}

// ListCurrencies returns the supported currency codes and display names.
func (c *Client) ListCurrencies(ctx context.Context) (map[string]string, error) {
	var resp codesResponse
	if _, err := c.get(ctx, OpCodes, "codes", nil, &resp); err != nil {
		return nil, err
	}

	currencies := make(map[string]string, len(resp.SupportedCodes))
	for _, pair := range resp.SupportedCodes {
		if len(pair) != 2 {
			continue
		}
		currencies[pair[0]] = pair[1]
	}
	return currencies, nil
}

// LatestRate returns the current rate from one currency to another.
func (c *Client) LatestRate(ctx context.Context, from, to string) (float64, error) {
	var resp latestResponse
	if _, err := c.get(ctx, OpLatest, "latest/"+url.PathEscape(from), nil, &resp); err != nil {
		return 0, err
	}

	rate, ok := resp.ConversionRates[to]
	if !ok {
		return 0, &Error{Op: OpLatest, Code: "unsupported-code",
			Detail: fmt.Sprintf("Currency %s not supported", to), Err: ErrUnsupportedCurrency}
	}
	return rate, nil
}

// HistoricalRates returns date → {to: rate} for the inclusive range.
// A provider 404 means no data and yields an empty map with a nil error.
func (c *Client) HistoricalRates(ctx context.Context, from, to string, start, end time.Time) (map[string]map[string]float64, error) {
	params := url.Values{}
	params.Set("start_date", start.Format(dateLayout))
	params.Set("end_date", end.Format(dateLayout))

	var resp historyResponse
	found, err := c.get(ctx, OpHistory, "history/"+url.PathEscape(from), params, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]map[string]float64{}, nil
	}

	out := make(map[string]map[string]float64, len(resp.ConversionRates))
	for date, rates := range resp.ConversionRates {
		if rate, ok := rates[to]; ok {
			out[date] = map[string]float64{to: rate}
		}
	}
	return out, nil
}

// get performs a GET against path and decodes a successful body into dst.
// found is false when the history endpoint answered 404.
func (c *Client) get(ctx context.Context, op, path string, params url.Values, dst interface{ errorCode() string }) (found bool, err error) {
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		if err != nil {
			outcome = metrics.OutcomeError
		} else if !found {
			outcome = metrics.OutcomeNoData
		}
		c.recorder.IncUpstreamCall(op, outcome)
		c.recorder.ObserveUpstreamDuration(op, time.Since(start))
	}()

	target := c.baseURL + url.PathEscape(c.apiKey) + "/" + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, &Error{Op: op, Detail: c.redact(err.Error()), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fxgate/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false, c.transportError(ctx, op, err)
	}

	if resp.StatusCode == http.StatusNotFound && op == OpHistory {
		c.logger.Debug("provider returned 404, treating as no data", "op", op)
		return false, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, c.statusError(op, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return false, &Error{Op: op, StatusCode: resp.StatusCode,
			Detail: "Invalid JSON response from API: " + c.redact(truncate(string(body), 200)), Err: err}
	}

	var env envelope
	_ = json.Unmarshal(body, &env)
	if env.Result != "success" {
		return false, c.resultError(op, resp.StatusCode, dst.errorCode())
	}

	return true, nil
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	// url.Error carries the request URL, which contains the API key.
	var urlErr *url.Error
	inner := err
	if errors.As(err, &urlErr) {
		inner = urlErr.Err
	}

	// A caller that went away will not retry.
	retryable := !errors.Is(ctx.Err(), context.Canceled)

	detail := c.redact(inner.Error())
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		detail = "request timed out"
	}

	c.logger.Warn("provider request failed", "op", op, "error", detail)
	return &Error{Op: op, Detail: detail, Retryable: retryable, Err: inner}
}

func (c *Client) statusError(op string, status int, body []byte) error {
	var env envelope
	detail := ""
	code := ""
	if err := json.Unmarshal(body, &env); err == nil && env.errorCode() != "" {
		code = env.errorCode()
		detail = code
	} else if text := strings.TrimSpace(string(body)); text != "" {
		detail = truncate(text, 200)
	} else {
		detail = fmt.Sprintf("HTTP %d", status)
	}

	var wrapped error
	if normalizeCode(code) == "unsupported_code" {
		wrapped = ErrUnsupportedCurrency
	}

	retryable := status >= 500 || status == http.StatusTooManyRequests
	c.logger.Warn("provider returned error status", "op", op, "status", status, "code", code)
	return &Error{Op: op, StatusCode: status, Code: code, Detail: "API error: " + c.redact(detail), Retryable: retryable, Err: wrapped}
}

func (c *Client) resultError(op string, status int, code string) error {
	if code == "" {
		code = "Unknown error"
	}
	detail := "API Error: " + code

	normalized := normalizeCode(code)
	var wrapped error
	switch {
	case normalized == "unsupported_date":
		detail += ". The API may not support data this far back."
	case strings.Contains(normalized, "time_frame"):
		detail += ". The time frame is too large for this API."
	case normalized == "unsupported_code":
		wrapped = ErrUnsupportedCurrency
	}

	return &Error{Op: op, StatusCode: status, Code: code, Detail: c.redact(detail), Err: wrapped}
}

// normalizeCode folds "unsupported-code" and "unsupported_code" together.
func normalizeCode(code string) string {
	return strings.ReplaceAll(strings.ToLower(code), "-", "_")
}

func (c *Client) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, "***")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
