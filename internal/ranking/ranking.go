// Package ranking orders scored jobs and turns results into persistable snapshots.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/matching"
	"go.uber.org/zap"
)

// AlgorithmVersion stamps snapshots. Bump it whenever scoring changes so stored matches can be told apart.
const AlgorithmVersion = 2

type Scorer interface {
	Score(keywords []string, job *jobs.Job) matching.Result
}

type Service struct {
	scorer Scorer
	logger *zap.Logger
}

func NewService(scorer Scorer, logger *zap.Logger) *Service {
	if scorer == nil {
		scorer = matching.NewEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{scorer: scorer, logger: logger}
}

// Rank scores every job and orders the results by compatibility, technical match,
// keyword ratio and number of matching keywords, all descending. Full ties keep input order.
func (s *Service) Rank(keywords []string, list []*jobs.Job) []matching.Result {
	results := make([]matching.Result, 0, len(list))
	for _, job := range list {
		if job == nil {
			continue
		}
		results = append(results, s.scorer.Score(keywords, job))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return less(results[j], results[i])
	})

	s.logger.Debug("ranked jobs", zap.Int("jobs", len(results)), zap.Int("keywords", len(keywords)))
	return results
}

// RankStored loads every job matching q from the store and ranks them.
func (s *Service) RankStored(ctx context.Context, store jobs.JobStore, keywords []string, q jobs.Query) ([]matching.Result, error) {
	all, err := LoadAll(ctx, store, q)
	if err != nil {
		return nil, err
	}
	return s.Rank(keywords, all), nil
}

// LoadAll walks all pages of q.
func LoadAll(ctx context.Context, store jobs.JobStore, q jobs.Query) ([]*jobs.Job, error) {
	q.PerPage = jobs.MaxPerPage
	q.Page = 1

	var out []*jobs.Job
	for {
		page, err := store.ListJobs(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("load jobs page %d: %w", q.Page, err)
		}
		out = append(out, page.Jobs...)
		if !page.HasNext() {
			return out, nil
		}
		q.Page++
	}
}

// less reports whether a ranks strictly below b.
func less(a, b matching.Result) bool {
	if a.CompatibilityScore != b.CompatibilityScore {
		return a.CompatibilityScore < b.CompatibilityScore
	}
	if a.TechnicalMatchScore != b.TechnicalMatchScore {
		return a.TechnicalMatchScore < b.TechnicalMatchScore
	}
	if a.KeywordMatchRatio != b.KeywordMatchRatio {
		return a.KeywordMatchRatio < b.KeywordMatchRatio
	}
	return len(a.MatchingKeywords) < len(b.MatchingKeywords)
}

// Snapshot converts results into match records stamped with AlgorithmVersion.
// Results of jobs that were never stored are skipped.
func Snapshot(profileID string, results []matching.Result, now time.Time) []*jobs.Match {
	out := make([]*jobs.Match, 0, len(results))
	for _, r := range results {
		if r.Job == nil || r.Job.ID == 0 {
			continue
		}
		out = append(out, &jobs.Match{
			ProfileID:          profileID,
			JobID:              r.Job.ID,
			CompatibilityScore: r.CompatibilityScore,
			MatchingKeywords:   append([]string(nil), r.MatchingKeywords...),
			MissingKeywords:    append([]string(nil), r.MissingKeywords...),
			AlgorithmVersion:   AlgorithmVersion,
			CreatedAt:          now,
		})
	}
	return out
}

// Stale reports whether a stored match was produced by another algorithm version.
// Stale matches are never rescored implicitly.
func Stale(m *jobs.Match) bool {
	return m.AlgorithmVersion != AlgorithmVersion
}
