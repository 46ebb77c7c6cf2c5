package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/fxgate/fxgate/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabeled(w, "fxgate_rate_limited_total", "policy", snap.RateLimited)
	writeLabeled(w, "fxgate_insufficient_credits_total", "stage", snap.InsufficientCredits)
	writeMetric(w, "fxgate_credits_debited_total %d\n", snap.CreditsDebited)
	writeLabeled(w, "fxgate_conversions_total", "kind", snap.Conversions)

	for _, key := range sortedKeys(snap.UpstreamCalls) {
		op, outcome, _ := strings.Cut(key, "|")
		writeMetric(w, "fxgate_upstream_calls_total{op=%q,outcome=%q} %d\n", op, outcome, snap.UpstreamCalls[key])
	}
	for _, op := range sortedKeys(snap.UpstreamDurations) {
		d := snap.UpstreamDurations[op]
		writeMetric(w, "fxgate_upstream_duration_seconds_count{op=%q} %d\n", op, d.Count)
		writeMetric(w, "fxgate_upstream_duration_seconds_sum{op=%q} %.6f\n", op, float64(d.TotalNs)/1e9)
	}

	writeMetric(w, "fxgate_currency_cache_hits_total %d\n", snap.CurrencyCacheHits)
	writeMetric(w, "fxgate_currency_cache_misses_total %d\n", snap.CurrencyCacheMisses)
}

func writeLabeled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	for _, key := range sortedKeys(values) {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, key, values[key])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
