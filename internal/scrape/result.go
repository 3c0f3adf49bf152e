package scrape

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/jobscout/internal/fetch"
	"github.com/spigell/jobscout/internal/jobs"
)

// ErrCancelled is returned by Run when the session was cancelled before it finished.
var ErrCancelled = errors.New("scrape session cancelled")

// SourceOutcome summarizes one source of a run.
type SourceOutcome struct {
	Source    string         `json:"source"`
	Status    SiteStatus     `json:"status"`
	Pages     int            `json:"pages"`
	JobsFound int            `json:"jobs_found"`
	Skipped   int            `json:"skipped_records"`
	Errors    []*fetch.Error `json:"-"`
}

func (o SourceOutcome) Failed() bool {
	switch o.Status {
	case SiteRateLimited, SiteBlocked, SiteFailed:
		return true
	}
	return false
}

// Result is what a run collected, including partial failures.
type Result struct {
	Session    *jobs.Session   `json:"session"`
	Jobs       []*jobs.Job     `json:"-"`
	Errors     []*fetch.Error  `json:"-"`
	Outcomes   []SourceOutcome `json:"outcomes"`
	TotalFound int             `json:"total_found"`
	TotalSaved int             `json:"total_saved"`
}

func (r *Result) SuccessfulSources() []string {
	out := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Status == SiteCompleted {
			out = append(out, o.Source)
		}
	}
	return out
}

func (r *Result) FailedSources() []string {
	out := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o.Source)
		}
	}
	return out
}

// Summary is a one-line report of the run.
func (r *Result) Summary() string {
	parts := []string{fmt.Sprintf("Found %d jobs", r.TotalFound)}
	if r.TotalSaved > 0 {
		parts[0] += fmt.Sprintf(", saved %d new jobs", r.TotalSaved)
	}
	if ok := r.SuccessfulSources(); len(ok) > 0 {
		parts = append(parts, "successful sites: "+strings.Join(ok, ", "))
	}
	if failed := r.FailedSources(); len(failed) > 0 {
		parts = append(parts, "failed sites: "+strings.Join(failed, ", "))
	}
	return strings.Join(parts, "; ")
}

// RunError is the hard failure of a run where no source produced a job.
type RunError struct {
	Errors []*fetch.Error
}

func (e *RunError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.UserMessage())
	}
	return "all sources failed: " + strings.Join(msgs, "; ")
}

func (e *RunError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		out = append(out, err)
	}
	return out
}
