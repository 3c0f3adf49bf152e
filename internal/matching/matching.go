// Package matching scores a job against a candidate keyword set.
package matching

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/spigell/jobscout/internal/jobs"
)

// The aggregate score and the per-keyword breakdown use different fuzzy
// thresholds. Both are relied upon downstream, keep them apart.
const (
	AggregateFuzzyThreshold = 0.7
	DetailedFuzzyThreshold  = 0.8
)

const (
	PartialWeight        = 0.5
	TechnicalBoostWeight = 0.2
	LanguageBonus        = 0.05
	MinFuzzyWordLength   = 3
)

// Result is the score of one job with its breakdown.
type Result struct {
	Job                 *jobs.Job `json:"job"`
	CompatibilityScore  float64   `json:"compatibility_score"`
	MatchingKeywords    []string  `json:"matching_keywords"`
	MissingKeywords     []string  `json:"missing_keywords"`
	KeywordMatchRatio   float64   `json:"keyword_match_ratio"`
	TechnicalMatchScore float64   `json:"technical_match_score"`
	LanguageMatchBonus  float64   `json:"language_match_bonus"`
}

// Engine computes compatibility scores. The zero value is ready to use.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Compatibility returns the aggregate score of keywords against job in [0, 1].
func (e *Engine) Compatibility(keywords []string, job *jobs.Job) float64 {
	return evaluate(NormalizeKeywords(keywords), job, AggregateFuzzyThreshold).score
}

// Score returns the detailed breakdown. The headline score is the aggregate one,
// keyword lists and ratios come from the stricter detailed pass.
func (e *Engine) Score(keywords []string, job *jobs.Job) Result {
	kws := NormalizeKeywords(keywords)

	aggregate := evaluate(kws, job, AggregateFuzzyThreshold)
	detailed := evaluate(kws, job, DetailedFuzzyThreshold)

	res := Result{
		Job:                 job,
		CompatibilityScore:  aggregate.score,
		MatchingKeywords:    detailed.matching,
		MissingKeywords:     detailed.missing,
		TechnicalMatchScore: round3(detailed.technical),
		LanguageMatchBonus:  detailed.bonus,
	}
	if len(kws) > 0 {
		res.KeywordMatchRatio = round3(float64(len(detailed.matching)) / float64(len(kws)))
	}
	return res
}

type evaluation struct {
	score     float64
	technical float64
	bonus     float64
	matching  []string
	missing   []string
}

func evaluate(keywords []string, job *jobs.Job, threshold float64) evaluation {
	ev := evaluation{matching: []string{}, missing: []string{}}
	if len(keywords) == 0 || job == nil || strings.TrimSpace(job.Description) == "" {
		return ev
	}

	description := strings.ToLower(job.Description)
	candidates := fuzzyCandidates(description)

	var (
		exact, partial int
		techCount      int
		techWeighted   float64
	)
	for _, kw := range keywords {
		weight := 0.0
		switch {
		case strings.Contains(description, kw) || job.HasTechnology(kw):
			exact++
			weight = 1
		case bestSimilarity(kw, candidates) >= threshold:
			partial++
			weight = PartialWeight
		}

		if weight > 0 {
			ev.matching = append(ev.matching, kw)
		} else {
			ev.missing = append(ev.missing, kw)
		}
		if IsTechnical(kw) {
			techCount++
			techWeighted += weight
		}
	}

	base := (float64(exact) + PartialWeight*float64(partial)) / float64(len(keywords))
	if techCount > 0 {
		ev.technical = techWeighted / float64(techCount)
	}
	if DetectLanguage(job.Description) == DetectLanguage(strings.Join(keywords, " ")) {
		ev.bonus = LanguageBonus
	}

	ev.score = round3(math.Min(1, base+ev.technical*TechnicalBoostWeight+ev.bonus))
	return ev
}

func fuzzyCandidates(description string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, w := range words(description) {
		if utf8.RuneCountInString(w) < MinFuzzyWordLength {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func bestSimilarity(keyword string, candidates []string) float64 {
	best := 0.0
	for _, c := range candidates {
		if s := BigramSimilarity(keyword, c); s > best {
			best = s
		}
	}
	return best
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
