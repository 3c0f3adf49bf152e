package source

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type htmlOptions struct {
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// HTMLOption configures the html and api adapters.
type HTMLOption func(*htmlOptions)

// WithBaseURL points the adapter at another host, used with test servers.
func WithBaseURL(u string) HTMLOption {
	return func(o *htmlOptions) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithClock sets the scraped_at source.
func WithClock(now func() time.Time) HTMLOption {
	return func(o *htmlOptions) { o.now = now }
}

func applyHTMLOptions(baseURL string, logger *zap.Logger, opts []HTMLOption) htmlOptions {
	o := htmlOptions{baseURL: baseURL, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.First().Text()), " ")
}

// resolve makes href absolute against base.
func resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
