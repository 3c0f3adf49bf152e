package filtering

import (
	"context"
	"strings"

	"github.com/spigell/jobscout/internal/matching"
)

type companiesFilter struct {
	toggle
	companies []string
	excluded  map[string]struct{}
}

// NewExcludedCompanies removes jobs posted by the given companies. Names compare case-insensitively.
func NewExcludedCompanies(companies []string) Filter {
	f := &companiesFilter{excluded: make(map[string]struct{}, len(companies))}
	for _, c := range companies {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		f.companies = append(f.companies, c)
		f.excluded[strings.ToLower(c)] = struct{}{}
	}
	return f
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Validate() error { return nil }

func (f *companiesFilter) Apply(_ context.Context, results []matching.Result) ([]matching.Result, Step, error) {
	initial := len(results)
	if len(f.excluded) == 0 {
		return results, step(initial, results), nil
	}

	left, _ := keep(results, func(r matching.Result) bool {
		if r.Job == nil {
			return true
		}
		_, skip := f.excluded[strings.ToLower(strings.TrimSpace(r.Job.Company))]
		return !skip
	})
	return left, step(initial, left), nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
