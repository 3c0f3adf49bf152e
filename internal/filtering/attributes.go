package filtering

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/matching"
)

type remoteFilter struct {
	toggle
	allowed []jobs.RemoteType
}

// NewRemoteTypes keeps jobs with one of the given work arrangements.
// Jobs without a detected arrangement are dropped once a restriction is set.
func NewRemoteTypes(allowed []jobs.RemoteType) Filter {
	return &remoteFilter{allowed: allowed}
}

func (f *remoteFilter) Name() string { return "remote_type" }

func (f *remoteFilter) Validate() error {
	for _, r := range f.allowed {
		if !r.Valid() {
			return fmt.Errorf("unknown remote type %q", r)
		}
	}
	return nil
}

func (f *remoteFilter) Apply(_ context.Context, results []matching.Result) ([]matching.Result, Step, error) {
	initial := len(results)
	if len(f.allowed) == 0 {
		return results, step(initial, results), nil
	}

	left, _ := keep(results, func(r matching.Result) bool {
		return r.Job != nil && contains(f.allowed, r.Job.RemoteType)
	})
	return left, step(initial, left), nil
}

func (f *remoteFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: joined("allowed", f.allowed)}
}

type experienceFilter struct {
	toggle
	allowed []jobs.ExperienceLevel
}

// NewExperienceLevels keeps jobs at one of the given seniority levels.
func NewExperienceLevels(allowed []jobs.ExperienceLevel) Filter {
	return &experienceFilter{allowed: allowed}
}

func (f *experienceFilter) Name() string { return "experience_level" }

func (f *experienceFilter) Validate() error {
	for _, e := range f.allowed {
		if !e.Valid() {
			return fmt.Errorf("unknown experience level %q", e)
		}
	}
	return nil
}

func (f *experienceFilter) Apply(_ context.Context, results []matching.Result) ([]matching.Result, Step, error) {
	initial := len(results)
	if len(f.allowed) == 0 {
		return results, step(initial, results), nil
	}

	left, _ := keep(results, func(r matching.Result) bool {
		return r.Job != nil && contains(f.allowed, r.Job.ExperienceLevel)
	})
	return left, step(initial, left), nil
}

func (f *experienceFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: joined("allowed", f.allowed)}
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func joined[T ~string](key string, values []T) map[string]string {
	if len(values) == 0 {
		return map[string]string{}
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, string(v))
	}
	return map[string]string{key: strings.Join(parts, ",")}
}
