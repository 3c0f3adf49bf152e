package jobs

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// JobStore persists jobs keyed by source url.
type JobStore interface {
	// UpsertJob inserts the job when its source url is unknown, otherwise it
	// overwrites the mutable fields and keeps the stored id.
	UpsertJob(ctx context.Context, job *Job) (UpsertResult, error)
	GetJob(ctx context.Context, id int64) (*Job, error)
	ListJobs(ctx context.Context, q Query) (*Page, error)
	// Latest returns the newest scraped_at and the number of stored jobs.
	Latest(ctx context.Context) (time.Time, int, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
}

type MatchStore interface {
	SaveMatches(ctx context.Context, matches []*Match) error
	ListMatches(ctx context.Context, profileID string, limit int) ([]*Match, error)
}

type Store interface {
	JobStore
	SessionStore
	MatchStore
	Close() error
}
