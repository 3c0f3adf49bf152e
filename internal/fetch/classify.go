package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const rateLimitText = "rate limit"

// classifyResponse turns a non-2xx response into a classified error.
func classifyResponse(a Attempt, status int, header http.Header, body []byte, defaultRetryAfter time.Duration, now time.Time) *Error {
	e := &Error{
		Source:     a.Source,
		URL:        a.URL,
		StatusCode: status,
		Message:    fmt.Sprintf("unexpected status %d %s", status, http.StatusText(status)),
	}

	switch {
	case status == http.StatusTooManyRequests || strings.Contains(strings.ToLower(string(body)), rateLimitText):
		e.Kind = KindRateLimit
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"), defaultRetryAfter, now)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindBlocked
	case status == http.StatusInternalServerError ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable:
		e.Kind = KindSiteUnavailable
	default:
		e.Kind = KindGeneric
	}

	return e
}

// classifyTransport turns a client error (no response) into a classified error.
func classifyTransport(a Attempt, err error, defaultRetryAfter time.Duration) *Error {
	e := &Error{
		Source:  a.Source,
		URL:     a.URL,
		Message: "request failed",
		Cause:   err,
	}

	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError

	switch {
	case strings.Contains(strings.ToLower(err.Error()), rateLimitText):
		e.Kind = KindRateLimit
		e.RetryAfter = defaultRetryAfter
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		e.Kind = KindTimeout
		e.Message = fmt.Sprintf("no response within %s", a.Timeout)
	case errors.As(err, &opErr),
		errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		e.Kind = KindNetwork
		e.Message = "connection failed"
	default:
		e.Kind = KindGeneric
	}

	return e
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, fallback time.Duration, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
		return 0
	}

	return fallback
}
