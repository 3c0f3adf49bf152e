package jobs

import "time"

type MatchQuality string

const (
	QualityExcellent MatchQuality = "excellent"
	QualityGood      MatchQuality = "good"
	QualityFair      MatchQuality = "fair"
	QualityPoor      MatchQuality = "poor"
)

// Match is a persisted snapshot of a scoring result. It references the job by id
// and records the algorithm version that produced the score.
type Match struct {
	ID                 int64     `json:"id"`
	ProfileID          string    `json:"profile_id"`
	JobID              int64     `json:"job_id"`
	CompatibilityScore float64   `json:"compatibility_score"`
	MatchingKeywords   []string  `json:"matching_keywords"`
	MissingKeywords    []string  `json:"missing_keywords"`
	AlgorithmVersion   int       `json:"algorithm_version"`
	CreatedAt          time.Time `json:"created_at"`
}

func (m *Match) Quality() MatchQuality {
	switch {
	case m.CompatibilityScore >= 0.8:
		return QualityExcellent
	case m.CompatibilityScore >= 0.6:
		return QualityGood
	case m.CompatibilityScore >= 0.4:
		return QualityFair
	default:
		return QualityPoor
	}
}
