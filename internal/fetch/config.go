package fetch

import (
	"math"
	"time"
)

const (
	DefaultRetries       = 3
	DefaultBaseDelay     = time.Second
	DefaultBackoffFactor = 2.0
	DefaultMaxDelay      = 300 * time.Second
	DefaultTimeout       = 30 * time.Second
	DefaultRetryAfter    = 60 * time.Second

	minJitter = 0.1
	maxJitter = 0.3
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.7; rv:132.0) Gecko/20100101 Firefox/132.0",
}

// SourceConfig overrides fetcher defaults for one source.
type SourceConfig struct {
	BaseDelay      time.Duration `mapstructure:"base-delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	// RotateIdentity changes the user agent on every retry. It has no effect
	// unless UserAgents holds at least two entries.
	RotateIdentity bool          `mapstructure:"rotate-identity"`
}

type Config struct {
	Retries           int                     `mapstructure:"retries" validate:"gte=0,lte=10"`
	BaseDelay         time.Duration           `mapstructure:"base-delay"`
	BackoffFactor     float64                 `mapstructure:"backoff-factor"`
	MaxDelay          time.Duration           `mapstructure:"max-delay"`
	Timeout           time.Duration           `mapstructure:"timeout"`
	DefaultRetryAfter time.Duration           `mapstructure:"default-retry-after"`
	// RotateIdentity is the default for sources without an override. See SourceConfig.
	RotateIdentity    bool                    `mapstructure:"rotate-identity"`
	UserAgents        []string                `mapstructure:"user-agents"`
	Sources           map[string]SourceConfig `mapstructure:"sources"`
}

func DefaultConfig() Config {
	return Config{
		Retries:           DefaultRetries,
		BaseDelay:         DefaultBaseDelay,
		BackoffFactor:     DefaultBackoffFactor,
		MaxDelay:          DefaultMaxDelay,
		Timeout:           DefaultTimeout,
		DefaultRetryAfter: DefaultRetryAfter,
		UserAgents:        append([]string(nil), defaultUserAgents...),
	}
}

// withDefaults replaces unset values. Retries is kept as is, zero means a single attempt.
func (c Config) withDefaults() Config {
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = DefaultRetryAfter
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = append([]string(nil), defaultUserAgents...)
	}
	return c
}

// FixedIdentity reports whether rotation is requested anywhere while only one
// user agent is available, so every attempt would still look the same.
func (c Config) FixedIdentity() bool {
	if len(c.UserAgents) > 1 {
		return false
	}
	if c.RotateIdentity {
		return true
	}
	for _, sc := range c.Sources {
		if sc.RotateIdentity {
			return true
		}
	}
	return false
}

// ForSource merges the overrides of a configured source with the defaults.
func (c Config) ForSource(source string) SourceConfig {
	resolved := SourceConfig{
		BaseDelay:      c.BaseDelay,
		Timeout:        c.Timeout,
		RotateIdentity: c.RotateIdentity,
	}

	sc, ok := c.Sources[source]
	if !ok {
		return resolved
	}
	if sc.BaseDelay > 0 {
		resolved.BaseDelay = sc.BaseDelay
	}
	if sc.Timeout > 0 {
		resolved.Timeout = sc.Timeout
	}
	resolved.RotateIdentity = sc.RotateIdentity

	return resolved
}

// Delay is the backoff before retrying after the given zero-based attempt:
// base*factor^attempt plus jitter (a fraction in [0.1, 0.3] of that value), capped at MaxDelay.
func (c Config) Delay(attempt int, base time.Duration, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	jitter = math.Min(math.Max(jitter, minJitter), maxJitter)

	raw := float64(base) * math.Pow(c.BackoffFactor, float64(attempt))
	delay := raw + raw*jitter
	if delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}
