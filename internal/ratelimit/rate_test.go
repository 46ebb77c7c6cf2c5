package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Rate
		wantErr bool
	}{
		{input: "5/minute", want: Rate{Limit: 5, Window: time.Minute}},
		{input: "1000/day", want: Rate{Limit: 1000, Window: 24 * time.Hour}},
		{input: "1000 per day", want: Rate{Limit: 1000, Window: 24 * time.Hour}},
		{input: "10/m", want: Rate{Limit: 10, Window: time.Minute}},
		{input: " 3 / Hour ", want: Rate{Limit: 3, Window: time.Hour}},
		{input: "2/seconds", want: Rate{Limit: 2, Window: time.Second}},
		{input: "5", wantErr: true},
		{input: "0/minute", wantErr: true},
		{input: "-1/minute", wantErr: true},
		{input: "five/minute", wantErr: true},
		{input: "5/fortnight", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRate_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "5/minute", Rate{Limit: 5, Window: time.Minute}.String())
	assert.Equal(t, "1000/day", Rate{Limit: 1000, Window: 24 * time.Hour}.String())
	assert.Equal(t, "7/30s", Rate{Limit: 7, Window: 30 * time.Second}.String())
}

func TestMustParseRate_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustParseRate("bogus") })
}

func TestResult_RetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	r := Result{ResetAt: now.Add(1500 * time.Millisecond)}
	assert.Equal(t, 2*time.Second, r.RetryAfter(now))

	r = Result{ResetAt: now.Add(-time.Second)}
	assert.Equal(t, time.Second, r.RetryAfter(now))

	r = Result{ResetAt: now.Add(30 * time.Second)}
	assert.Equal(t, 30*time.Second, r.RetryAfter(now))
}

func TestWindowStart(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 4, 15, 42, 17, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 4, 15, 42, 0, 0, time.UTC), WindowStart(ts, time.Minute))
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), WindowStart(ts, 24*time.Hour))
}
