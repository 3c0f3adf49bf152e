package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordWaits replaces the package wait function and returns the recorded delays.
func recordWaits(t *testing.T) *[]time.Duration {
	t.Helper()

	var mu sync.Mutex
	waits := make([]time.Duration, 0)
	original := wait
	wait = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { wait = original })

	return &waits
}

func fixedJitter(v float64) Option {
	return WithJitter(func() float64 { return v })
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestFetchRateLimitThenSuccess(t *testing.T) {
	waits := recordWaits(t)

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "45")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := New(testConfig(), fixedJitter(0.2))
	payload, err := f.Fetch(context.Background(), srv.URL, "indeed")
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, payload.Attempts)
	assert.Equal(t, "<html>ok</html>", string(payload.Body))
	require.Len(t, *waits, 1)
	assert.Equal(t, 45*time.Second, (*waits)[0])
}

func TestFetchRateLimitDefaultRetryAfterAndExhaustion(t *testing.T) {
	waits := recordWaits(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Retries = 1
	f := New(cfg)

	_, err := f.Fetch(context.Background(), srv.URL, "linkedin")
	require.Error(t, err)

	ferr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimit, ferr.Kind)
	assert.Equal(t, DefaultRetryAfter, ferr.RetryAfter)
	assert.Equal(t, []time.Duration{DefaultRetryAfter}, *waits)
}

func TestFetchRateLimitText(t *testing.T) {
	recordWaits(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("You have hit our Rate Limit"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Retries = 0
	_, err := New(cfg).Fetch(context.Background(), srv.URL, "indeed")

	assert.Equal(t, KindRateLimit, KindOf(err))
}

func TestFetchBlockedWaitsDoubleBackoff(t *testing.T) {
	waits := recordWaits(t)

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Retries = 2
	_, err := New(cfg, fixedJitter(0.1)).Fetch(context.Background(), srv.URL, "linkedin")

	assert.Equal(t, KindBlocked, KindOf(err))
	assert.Equal(t, 3, calls)
	require.Len(t, *waits, 2)
	assert.InDelta(t, 2.2, (*waits)[0].Seconds(), 0.001)
	assert.InDelta(t, 4.4, (*waits)[1].Seconds(), 0.001)
}

func TestFetchClassifiesStatuses(t *testing.T) {
	recordWaits(t)

	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: KindBlocked},
		{name: "internal error", status: http.StatusInternalServerError, want: KindSiteUnavailable},
		{name: "bad gateway", status: http.StatusBadGateway, want: KindSiteUnavailable},
		{name: "unavailable", status: http.StatusServiceUnavailable, want: KindSiteUnavailable},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, want: KindGeneric},
		{name: "not found", status: http.StatusNotFound, want: KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			cfg := testConfig()
			cfg.Retries = 0
			_, err := New(cfg).Fetch(context.Background(), srv.URL, "indeed")

			ferr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, ferr.Kind)
			assert.Equal(t, tt.status, ferr.StatusCode)
		})
	}
}

func TestFetchNetworkErrorUsesStandardBackoff(t *testing.T) {
	waits := recordWaits(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := testConfig()
	cfg.Retries = 2
	_, err := New(cfg, fixedJitter(0.3)).Fetch(context.Background(), url, "indeed")

	assert.Equal(t, KindNetwork, KindOf(err))
	require.Len(t, *waits, 2)
	assert.InDelta(t, 1.3, (*waits)[0].Seconds(), 0.001)
	assert.InDelta(t, 2.6, (*waits)[1].Seconds(), 0.001)
}

func TestFetchTimeout(t *testing.T) {
	waits := recordWaits(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig()
	cfg.Retries = 1
	cfg.Sources = map[string]SourceConfig{"slow": {Timeout: 50 * time.Millisecond}}

	_, err := New(cfg, fixedJitter(0.1)).Fetch(context.Background(), srv.URL, "slow")

	assert.Equal(t, KindTimeout, KindOf(err))
	require.Len(t, *waits, 1)
	assert.InDelta(t, 2.2, (*waits)[0].Seconds(), 0.001)
}

func TestFetchSourceOverridesBaseDelay(t *testing.T) {
	waits := recordWaits(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Retries = 1
	cfg.Sources = map[string]SourceConfig{"indeed": {BaseDelay: 5 * time.Second}}
	f := New(cfg)

	_, err := f.Fetch(context.Background(), srv.URL, "indeed")
	assert.Equal(t, KindSiteUnavailable, KindOf(err))
	require.Len(t, *waits, 1)
	assert.GreaterOrEqual(t, (*waits)[0], 5*time.Second)
	assert.LessOrEqual(t, (*waits)[0], 6500*time.Millisecond)

	*waits = (*waits)[:0]
	_, _ = f.Fetch(context.Background(), srv.URL, "unconfigured")
	require.Len(t, *waits, 1)
	assert.LessOrEqual(t, (*waits)[0], 1300*time.Millisecond)
}

func TestFetchRotatesIdentityBetweenAttempts(t *testing.T) {
	recordWaits(t)

	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.UserAgent())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Retries = 3
	cfg.Sources = map[string]SourceConfig{"rotating": {RotateIdentity: true}}
	f := New(cfg)

	_, _ = f.Fetch(context.Background(), srv.URL, "rotating")
	require.Len(t, agents, 4)
	for i := 1; i < len(agents); i++ {
		assert.NotEqual(t, agents[i-1], agents[i], "attempt %d reused identity", i+1)
	}

	agents = nil
	_, _ = f.Fetch(context.Background(), srv.URL, "static")
	require.Len(t, agents, 4)
	for _, ua := range agents {
		assert.Equal(t, agents[0], ua)
	}
}

func TestFetchStopsWhenContextCancelled(t *testing.T) {
	original := wait
	ctx, cancel := context.WithCancel(context.Background())
	wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	t.Cleanup(func() { wait = original })

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(testConfig()).Fetch(ctx, srv.URL, "indeed")

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestDelayBounds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	base := 2 * time.Second

	for attempt := 0; attempt < 10; attempt++ {
		raw := float64(base) * pow(cfg.BackoffFactor, attempt)
		for _, jitter := range []float64{0, 0.1, 0.2, 0.3, 0.9} {
			got := cfg.Delay(attempt, base, jitter)

			lower := time.Duration(raw)
			upper := time.Duration(raw * 1.3)
			if lower > cfg.MaxDelay {
				lower = cfg.MaxDelay
			}
			if upper > cfg.MaxDelay {
				upper = cfg.MaxDelay
			}

			assert.GreaterOrEqual(t, got, lower, "attempt %d jitter %v", attempt, jitter)
			assert.LessOrEqual(t, got, upper, "attempt %d jitter %v", attempt, jitter)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 120*time.Second, parseRetryAfter("120", time.Minute, now))
	assert.Equal(t, time.Minute, parseRetryAfter("", time.Minute, now))
	assert.Equal(t, time.Minute, parseRetryAfter("soon", time.Minute, now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), time.Minute, now))
}

func pow(f float64, n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= f
	}
	return out
}

func TestNewWarnsWhenRotationHasOneIdentity(t *testing.T) {
	cases := map[string]struct {
		cfg  Config
		warn bool
	}{
		"global rotation": {
			cfg:  Config{RotateIdentity: true, UserAgents: []string{"agent/1"}},
			warn: true,
		},
		"source rotation": {
			cfg:  Config{UserAgents: []string{"agent/1"}, Sources: map[string]SourceConfig{"linkedin": {RotateIdentity: true}}},
			warn: true,
		},
		"two identities": {
			cfg: Config{RotateIdentity: true, UserAgents: []string{"agent/1", "agent/2"}},
		},
		"default identities": {
			cfg: Config{RotateIdentity: true},
		},
		"rotation off": {
			cfg: Config{UserAgents: []string{"agent/1"}},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			core, observed := observer.New(zapcore.WarnLevel)
			f := New(tc.cfg, WithLogger(zap.New(core)))

			assert.Equal(t, tc.warn, f.Config().FixedIdentity())
			if tc.warn {
				require.Equal(t, 1, observed.Len())
				assert.Contains(t, observed.All()[0].Message, "only one user agent")
			} else {
				assert.Zero(t, observed.Len())
			}
		})
	}
}

func TestSingleIdentityIsReusedEvenWithRotation(t *testing.T) {
	for number := 0; number < 3; number++ {
		assert.Equal(t, "agent/1", pickIdentity([]string{"agent/1"}, 0, number, true))
	}
}
