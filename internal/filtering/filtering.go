// Package filtering narrows a ranked job list with user preferences.
package filtering

import (
	"context"
	"fmt"

	"github.com/spigell/jobscout/internal/matching"
	"go.uber.org/zap"
)

// Filter represents a single filtering step applied to ranked jobs.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, results []matching.Result) ([]matching.Result, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// toggle carries the enabled state shared by all filters.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially. Every enabled filter is validated
// before any of them is applied. The relative order of the results is preserved.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, results []matching.Result) ([]matching.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, results)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		results = next
	}

	return results, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the results accepted by pred and the source urls of the dropped ones.
func keep(results []matching.Result, pred func(matching.Result) bool) ([]matching.Result, []string) {
	kept := make([]matching.Result, 0, len(results))
	var dropped []string
	for _, r := range results {
		if pred(r) {
			kept = append(kept, r)
			continue
		}
		if r.Job != nil {
			dropped = append(dropped, r.Job.SourceURL)
		}
	}
	return kept, dropped
}

func step(initial int, left []matching.Result) Step {
	return Step{Initial: initial, Dropped: initial - len(left), Left: len(left)}
}
