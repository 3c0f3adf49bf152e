package filtering

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spigell/jobscout/internal/matching"
)

type minScoreFilter struct {
	toggle
	min float64
}

// NewMinScore drops jobs whose compatibility score is below min. A zero min keeps everything.
func NewMinScore(min float64) Filter {
	return &minScoreFilter{min: min}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Validate() error {
	if f.min < 0 || f.min > 1 {
		return fmt.Errorf("minimum score must be between 0 and 1, got %v", f.min)
	}
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, results []matching.Result) ([]matching.Result, Step, error) {
	initial := len(results)
	if f.min == 0 {
		return results, step(initial, results), nil
	}

	left, _ := keep(results, func(r matching.Result) bool {
		return r.CompatibilityScore >= f.min
	})
	return left, step(initial, left), nil
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min": strconv.FormatFloat(f.min, 'f', 3, 64)},
	}
}
