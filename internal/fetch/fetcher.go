package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/metrics"
	"github.com/spigell/jobscout/internal/utils"
	"go.uber.org/zap"
)

const maxBodySize = 10 << 20

// wait is swapped in tests to observe backoff without sleeping.
var wait = utils.WaitFor

// Payload is the raw response of a successful fetch.
type Payload struct {
	URL        string
	Source     string
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
	FetchedAt  time.Time
}

// Fetcher performs single GET requests with bounded retries, backoff and error classification.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
	jitter  func() float64
	offset  func(n int) int
	now     func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client. Timeouts are applied per attempt, the client's own timeout should stay unset.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithJitter overrides the jitter source. Values are clamped to [0.1, 0.3].
func WithJitter(fn func() float64) Option {
	return func(f *Fetcher) { f.jitter = fn }
}

func New(cfg Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:    cfg.withDefaults(),
		client: &http.Client{},
		logger: zap.NewNop(),
		jitter: func() float64 { return minJitter + rand.Float64()*(maxJitter-minJitter) },
		offset: rand.IntN,
		now:    time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	if f.cfg.FixedIdentity() {
		f.logger.Warn("identity rotation is on but only one user agent is configured, attempts will share it",
			zap.Strings("user_agents", f.cfg.UserAgents))
	}
	return f
}

func (f *Fetcher) Config() Config {
	return f.cfg
}

// Fetch requests url on behalf of source. On failure the returned error is a *Error,
// unless ctx ended first, in which case the context error is returned.
// ctx is checked before every attempt and while waiting; an in-flight request is only
// bounded by the per-attempt timeout.
func (f *Fetcher) Fetch(ctx context.Context, url, source string) (*Payload, error) {
	sc := f.cfg.ForSource(source)
	offset := f.offset(len(f.cfg.UserAgents))
	log := logger.WithFields(f.logger, logger.SourceFields(source, url)...)

	var last *Error
	for n := 0; n <= f.cfg.Retries; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := newAttempt(url, source, n, offset, sc, f.cfg.UserAgents)
		payload, ferr := f.do(ctx, a)
		f.metrics.IncFetchAttempt(source, ferr == nil)

		if ferr == nil {
			payload.Attempts = n + 1
			log.Debug("fetched page",
				zap.Int(logger.FieldAttempt, a.Number+1),
				zap.Int("status", payload.StatusCode),
				zap.Int("bytes", len(payload.Body)),
			)
			return payload, nil
		}

		f.metrics.IncFetchError(source, string(ferr.Kind))
		last = ferr

		if n == f.cfg.Retries {
			break
		}

		delay := f.retryDelay(ferr, n, sc)
		log.Warn("fetch attempt failed, retrying",
			zap.Int(logger.FieldAttempt, a.Number+1),
			zap.String(logger.FieldKind, string(ferr.Kind)),
			zap.Duration("wait", delay),
			zap.Error(ferr),
		)

		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	log.Error("fetch failed",
		zap.Int("attempts", f.cfg.Retries+1),
		zap.String(logger.FieldKind, string(last.Kind)),
		zap.Error(last),
	)

	return nil, last
}

// retryDelay applies the retry policy of the error kind to the standard backoff.
func (f *Fetcher) retryDelay(err *Error, attempt int, sc SourceConfig) time.Duration {
	switch err.Kind {
	case KindRateLimit:
		return err.RetryAfter
	case KindBlocked, KindTimeout:
		return 2 * f.cfg.Delay(attempt, sc.BaseDelay, f.jitter())
	default:
		return f.cfg.Delay(attempt, sc.BaseDelay, f.jitter())
	}
}

func (f *Fetcher) do(ctx context.Context, a Attempt) (*Payload, *Error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Timeout)
	defer cancel()

	req, err := a.request(reqCtx)
	if err != nil {
		return nil, &Error{
			Kind:    KindGeneric,
			Source:  a.Source,
			URL:     a.URL,
			Message: "building request",
			Cause:   err,
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(a, err, f.cfg.DefaultRetryAfter)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransport(a, fmt.Errorf("reading body: %w", err), f.cfg.DefaultRetryAfter)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyResponse(a, resp.StatusCode, resp.Header, body, f.cfg.DefaultRetryAfter, f.now())
	}

	return &Payload{
		URL:        a.URL,
		Source:     a.Source,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FetchedAt:  f.now(),
	}, nil
}
