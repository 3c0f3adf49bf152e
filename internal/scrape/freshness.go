package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/spigell/jobscout/internal/jobs"
)

const (
	DefaultFreshnessThreshold = 24 * time.Hour
	DefaultMinJobs            = 10
)

// FreshnessStatus describes how current the stored jobs are.
type FreshnessStatus struct {
	LastScrape *time.Time    `json:"last_scrape,omitempty"`
	Age        time.Duration `json:"age"`
	JobCount   int           `json:"job_count"`
	Stale      bool          `json:"stale"`
	Threshold  time.Duration `json:"threshold"`
}

// Freshness decides whether the stored data warrants a new scrape.
type Freshness struct {
	store     jobs.JobStore
	threshold time.Duration
	minJobs   int
	now       func() time.Time
}

func NewFreshness(store jobs.JobStore, threshold time.Duration, minJobs int) *Freshness {
	if threshold <= 0 {
		threshold = DefaultFreshnessThreshold
	}
	if minJobs < 0 {
		minJobs = DefaultMinJobs
	}
	return &Freshness{store: store, threshold: threshold, minJobs: minJobs, now: time.Now}
}

// Status reports stale when nothing is stored or the newest job is older than the threshold.
func (f *Freshness) Status(ctx context.Context) (FreshnessStatus, error) {
	latest, count, err := f.store.Latest(ctx)
	if err != nil {
		return FreshnessStatus{}, fmt.Errorf("read freshness: %w", err)
	}

	st := FreshnessStatus{JobCount: count, Threshold: f.threshold, Stale: true}
	if count == 0 || latest.IsZero() {
		return st, nil
	}

	st.LastScrape = &latest
	st.Age = f.now().Sub(latest)
	st.Stale = st.Age > f.threshold
	return st, nil
}

// ShouldScrape is true for stale data or when fewer than the minimum number of jobs are stored.
func (f *Freshness) ShouldScrape(ctx context.Context) (bool, FreshnessStatus, error) {
	st, err := f.Status(ctx)
	if err != nil {
		return false, st, err
	}
	return st.Stale || st.JobCount < f.minJobs, st, nil
}
