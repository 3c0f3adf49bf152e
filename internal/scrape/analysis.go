package scrape

import (
	"sort"

	"github.com/spigell/jobscout/internal/fetch"
)

// ErrorAnalysis groups run errors and suggests what to do about them.
type ErrorAnalysis struct {
	Total           int                `json:"total"`
	ByKind          map[fetch.Kind]int `json:"by_kind"`
	Sources         []string           `json:"sources"`
	AllTemporary    bool               `json:"all_temporary"`
	Recommendations []string           `json:"recommendations"`
}

func AnalyzeErrors(errs []*fetch.Error) ErrorAnalysis {
	a := ErrorAnalysis{
		Total:           len(errs),
		ByKind:          make(map[fetch.Kind]int),
		Sources:         []string{},
		Recommendations: []string{},
	}
	if len(errs) == 0 {
		return a
	}

	seen := make(map[string]struct{})
	a.AllTemporary = true
	for _, e := range errs {
		a.ByKind[e.Kind]++
		if _, ok := seen[e.Source]; !ok && e.Source != "" {
			seen[e.Source] = struct{}{}
			a.Sources = append(a.Sources, e.Source)
		}
		if !e.Temporary() {
			a.AllTemporary = false
		}
	}
	sort.Strings(a.Sources)

	if a.ByKind[fetch.KindRateLimit] > 0 {
		a.Recommendations = append(a.Recommendations,
			"Some sites are rate limiting requests. Consider increasing delays between requests.")
	}
	if a.ByKind[fetch.KindBlocked] > 0 {
		a.Recommendations = append(a.Recommendations,
			"Some sites blocked access. Try again later or enable identity rotation.")
	}
	if a.ByKind[fetch.KindSiteUnavailable] > 0 {
		a.Recommendations = append(a.Recommendations,
			"Some sites are temporarily unavailable. Try again later.")
	}
	if a.ByKind[fetch.KindNetwork] > 0 || a.ByKind[fetch.KindTimeout] > 0 {
		a.Recommendations = append(a.Recommendations,
			"Network issues detected. Check your internet connection.")
	}
	if a.ByKind[fetch.KindParsing] > 0 {
		a.Recommendations = append(a.Recommendations,
			"Some result pages could not be read. The site layout may have changed.")
	}
	if a.AllTemporary {
		a.Recommendations = append(a.Recommendations,
			"All errors appear to be temporary. Retrying later should work.")
	}
	return a
}
