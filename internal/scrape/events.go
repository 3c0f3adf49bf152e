package scrape

import (
	"sync"
	"time"
)

type EventType string

const (
	EventStarted      EventType = "started"
	EventScrapingSite EventType = "scraping_site"
	EventSaving       EventType = "saving"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
)

// SiteStatus is the state of one source within a run.
type SiteStatus string

const (
	SiteStarting    SiteStatus = "starting"
	SiteCompleted   SiteStatus = "completed"
	SiteRateLimited SiteStatus = "rate_limited"
	SiteBlocked     SiteStatus = "blocked"
	SiteFailed      SiteStatus = "failed"
	SiteSkipped     SiteStatus = "skipped"
)

// Event is a progress notification. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType  `json:"type"`
	SessionID string     `json:"session_id"`
	Site      string     `json:"site,omitempty"`
	Status    SiteStatus `json:"status,omitempty"`
	JobsFound int        `json:"jobs_found,omitempty"`
	JobsSaved int        `json:"jobs_saved,omitempty"`
	TotalJobs int        `json:"total_jobs,omitempty"`
	Error     string     `json:"error,omitempty"`
	Time      time.Time  `json:"time"`
}

// Observer receives run progress. Notify must not block for long.
type Observer interface {
	Notify(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// emitter serializes notifications so concurrent sources deliver events one at a time.
type emitter struct {
	mu        sync.Mutex
	observers []Observer
	sessionID string
	now       func() time.Time
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev.SessionID = e.sessionID
	ev.Time = e.now()
	for _, o := range e.observers {
		o.Notify(ev)
	}
}
