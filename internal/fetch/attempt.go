package fetch

import (
	"context"
	"net/http"
	"time"
)

const (
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9,pt-BR;q=0.8,pt;q=0.7"
)

// Attempt describes one request attempt. It is built per attempt and never mutated,
// so identity rotation cannot leak into other attempts or other fetches.
type Attempt struct {
	Number   int
	URL      string
	Source   string
	Identity string
	Timeout  time.Duration
}

func newAttempt(url, source string, number, offset int, sc SourceConfig, identities []string) Attempt {
	return Attempt{
		Number:   number,
		URL:      url,
		Source:   source,
		Identity: pickIdentity(identities, offset, number, sc.RotateIdentity),
		Timeout:  sc.Timeout,
	}
}

// pickIdentity keeps the same identity for every attempt unless rotation is on,
// in which case consecutive attempts get consecutive identities.
func pickIdentity(identities []string, offset, number int, rotate bool) string {
	if len(identities) == 0 {
		return defaultUserAgents[0]
	}
	idx := offset
	if rotate {
		idx += number
	}
	return identities[idx%len(identities)]
}

func (a Attempt) request(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", a.Identity)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	return req, nil
}
