package jobs

import (
	"time"
)

type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// SessionError is a single entry of the session error log.
type SessionError struct {
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// Session tracks one scrape run. Errors is append-only.
type Session struct {
	ID          string         `json:"id"`
	Keywords    []string       `json:"keywords"`
	Location    string         `json:"location,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	JobsFound   int            `json:"jobs_found"`
	JobsSaved   int            `json:"jobs_saved"`
	Status      SessionStatus  `json:"status"`
	Errors      []SessionError `json:"errors,omitempty"`
}

func NewSession(id string, keywords []string, location string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Keywords:  append([]string(nil), keywords...),
		Location:  location,
		StartedAt: now,
		Status:    SessionRunning,
	}
}

func (s *Session) AddError(message string, details map[string]string, now time.Time) {
	s.Errors = append(s.Errors, SessionError{
		Message:   message,
		Timestamp: now,
		Details:   details,
	})
}

func (s *Session) Complete(found, saved int, now time.Time) {
	s.JobsFound = found
	s.JobsSaved = saved
	s.finish(SessionCompleted, now)
}

// Fail marks the session failed. An empty message leaves the error log untouched.
func (s *Session) Fail(message string, now time.Time) {
	if message != "" {
		s.AddError(message, nil, now)
	}
	s.finish(SessionFailed, now)
}

func (s *Session) Cancel(now time.Time) {
	s.finish(SessionCancelled, now)
}

func (s *Session) finish(status SessionStatus, now time.Time) {
	s.Status = status
	t := now
	s.CompletedAt = &t
}

func (s *Session) IsActive() bool {
	return s.Status == SessionRunning
}

// Duration returns the run time of a finished session, or zero while it is running.
func (s *Session) Duration() time.Duration {
	if s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Keywords = append([]string(nil), s.Keywords...)
	c.Errors = append([]SessionError(nil), s.Errors...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
