package fetch

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a scrape failure.
type Kind string

const (
	KindRateLimit       Kind = "rate_limit"
	KindSiteUnavailable Kind = "site_unavailable"
	KindNetwork         Kind = "network"
	KindParsing         Kind = "parsing"
	KindAuth            Kind = "auth"
	KindBlocked         Kind = "blocked"
	KindTimeout         Kind = "timeout"
	KindGeneric         Kind = "generic"
)

// Error is a classified scrape failure for a single source.
type Error struct {
	Kind       Kind
	Source     string
	URL        string
	Message    string
	StatusCode int
	// RetryAfter is only set for rate limits.
	RetryAfter time.Duration
	Cause      error
}

func NewError(kind Kind, source, message string) *Error {
	return &Error{Kind: kind, Source: source, Message: message}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Message)
	if e.Kind != "" {
		msg = fmt.Sprintf("%s %s", e.Kind, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage is a short explanation meant for the person running the scrape.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindRateLimit:
		return fmt.Sprintf("Rate limit exceeded for %s. Please wait %d seconds before trying again.",
			e.Source, int(e.RetryAfter.Seconds()))
	case KindSiteUnavailable:
		return fmt.Sprintf("%s is currently unavailable. Please try again later.", e.Source)
	case KindNetwork:
		return fmt.Sprintf("Network connection issues while accessing %s. Please check your internet connection.", e.Source)
	case KindBlocked:
		return fmt.Sprintf("Access to %s has been temporarily blocked. Please try again later.", e.Source)
	case KindTimeout:
		return fmt.Sprintf("Request to %s timed out. The site may be slow or overloaded.", e.Source)
	case KindParsing:
		return fmt.Sprintf("Could not read results from %s. The page layout may have changed.", e.Source)
	case KindAuth:
		return fmt.Sprintf("Authentication with %s failed.", e.Source)
	default:
		return fmt.Sprintf("An error occurred while scraping %s: %s", e.Source, e.Message)
	}
}

// StopsSource reports whether the remaining pages of the source should be skipped.
func (e *Error) StopsSource() bool {
	return e.Kind == KindRateLimit || e.Kind == KindBlocked
}

// Temporary reports whether retrying later is likely to help.
func (e *Error) Temporary() bool {
	switch e.Kind {
	case KindRateLimit, KindSiteUnavailable, KindNetwork, KindTimeout:
		return true
	}
	return false
}

func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of a classified error, or KindGeneric.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindGeneric
}
