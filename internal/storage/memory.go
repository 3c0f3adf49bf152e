package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spigell/jobscout/internal/jobs"
)

// Memory is a jobs.Store kept in process memory. It is safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	nextJobID   int64
	nextMatchID int64
	jobs        map[int64]*jobs.Job
	byURL       map[string]int64
	sessions    map[string]*jobs.Session
	matches     []*jobs.Match
}

func NewMemory() *Memory {
	return &Memory{
		jobs:     make(map[int64]*jobs.Job),
		byURL:    make(map[string]int64),
		sessions: make(map[string]*jobs.Session),
	}
}

func (m *Memory) UpsertJob(_ context.Context, job *jobs.Job) (jobs.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byURL[job.SourceURL]; ok {
		m.jobs[id].Overwrite(job)
		job.ID = id
		return jobs.UpsertResult{ID: id}, nil
	}

	m.nextJobID++
	stored := job.Clone()
	stored.ID = m.nextJobID
	m.jobs[stored.ID] = stored
	m.byURL[stored.SourceURL] = stored.ID
	job.ID = stored.ID

	return jobs.UpsertResult{ID: stored.ID, Created: true}, nil
}

func (m *Memory) GetJob(_ context.Context, id int64) (*jobs.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return job.Clone(), nil
}

func (m *Memory) ListJobs(_ context.Context, q jobs.Query) (*jobs.Page, error) {
	q = q.Normalize()

	m.mu.RLock()
	matched := make([]*jobs.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if q.Matches(job) {
			matched = append(matched, job.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var c int
		switch q.SortBy {
		case jobs.SortTitle:
			c = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case jobs.SortCompany:
			c = strings.Compare(strings.ToLower(a.Company), strings.ToLower(b.Company))
		default:
			c = a.ScrapedAt.Compare(b.ScrapedAt)
		}
		if q.Desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})

	page := &jobs.Page{Total: len(matched), Page: q.Page, PerPage: q.PerPage, Jobs: []*jobs.Job{}}
	if off := q.Offset(); off < len(matched) {
		end := min(off+q.PerPage, len(matched))
		page.Jobs = matched[off:end]
	}
	return page, nil
}

func (m *Memory) Latest(_ context.Context) (time.Time, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest time.Time
	for _, job := range m.jobs {
		if job.ScrapedAt.After(latest) {
			latest = job.ScrapedAt
		}
	}
	return latest, len(m.jobs), nil
}

func (m *Memory) CreateSession(_ context.Context, s *jobs.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) UpdateSession(_ context.Context, s *jobs.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; !ok {
		return jobs.ErrNotFound
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*jobs.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return s.Clone(), nil
}

// ListSessions returns the newest sessions first.
func (m *Memory) ListSessions(_ context.Context, limit int) ([]*jobs.Session, error) {
	m.mu.RLock()
	out := make([]*jobs.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SaveMatches(_ context.Context, matches []*jobs.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, match := range matches {
		if _, ok := m.jobs[match.JobID]; !ok {
			return jobs.ErrNotFound
		}
	}
	for _, match := range matches {
		m.nextMatchID++
		match.ID = m.nextMatchID
		c := *match
		c.MatchingKeywords = append([]string(nil), match.MatchingKeywords...)
		c.MissingKeywords = append([]string(nil), match.MissingKeywords...)
		m.matches = append(m.matches, &c)
	}
	return nil
}

// ListMatches returns the profile's matches, best score first.
func (m *Memory) ListMatches(_ context.Context, profileID string, limit int) ([]*jobs.Match, error) {
	m.mu.RLock()
	out := make([]*jobs.Match, 0)
	for _, match := range m.matches {
		if match.ProfileID == profileID {
			c := *match
			out = append(out, &c)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompatibilityScore > out[j].CompatibilityScore
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
