package jobs

import (
	"testing"
	"time"
)

func TestQueryMatches(t *testing.T) {
	t.Parallel()

	job := &Job{
		Title:           "Senior Go Engineer",
		Company:         "Acme Corp",
		Location:        "Lisbon, Portugal",
		RemoteType:      RemoteTypeHybrid,
		ExperienceLevel: ExperienceSenior,
		Technologies:    []string{"go", "PostgreSQL"},
		Description:     "Build distributed services",
		SourceSite:      "linkedin",
	}

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{name: "empty query matches everything", query: Query{}, want: true},
		{name: "company substring ignores case", query: Query{Company: "acme"}, want: true},
		{name: "location mismatch", query: Query{Location: "berlin"}, want: false},
		{name: "search hits description", query: Query{Search: "distributed"}, want: true},
		{name: "remote type filter", query: Query{RemoteTypes: []RemoteType{RemoteTypeRemote}}, want: false},
		{name: "experience filter", query: Query{ExperienceLevels: []ExperienceLevel{ExperienceJunior, ExperienceSenior}}, want: true},
		{name: "source filter", query: Query{SourceSites: []string{"indeed"}}, want: false},
		{name: "any technology", query: Query{Technologies: []string{"rust", "postgresql"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.query.Matches(job); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Page: -1, PerPage: 1000, SortBy: "unknown"}.Normalize()

	if q.Page != 1 {
		t.Fatalf("expected page 1, got %d", q.Page)
	}
	if q.PerPage != MaxPerPage {
		t.Fatalf("expected per page %d, got %d", MaxPerPage, q.PerPage)
	}
	if q.SortBy != SortScrapedAt || !q.Desc {
		t.Fatalf("expected newest first by default, got %s desc=%v", q.SortBy, q.Desc)
	}
	if q.Offset() != 0 {
		t.Fatalf("expected zero offset, got %d", q.Offset())
	}
}

func TestPageTotals(t *testing.T) {
	p := &Page{Total: 61, Page: 2, PerPage: 30}
	if p.TotalPages() != 3 {
		t.Fatalf("expected 3 pages, got %d", p.TotalPages())
	}
	if !p.HasNext() {
		t.Fatalf("expected next page")
	}
}

func TestSessionLifecycle(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession("s1", []string{"go"}, "remote", start)

	if !s.IsActive() {
		t.Fatalf("new session should be running")
	}

	s.AddError("blocked", map[string]string{"site": "linkedin", "type": "blocked"}, start.Add(time.Second))
	s.Complete(13, 5, start.Add(time.Minute))

	if s.Status != SessionCompleted {
		t.Fatalf("expected completed, got %s", s.Status)
	}
	if s.Duration() != time.Minute {
		t.Fatalf("unexpected duration %s", s.Duration())
	}
	if len(s.Errors) != 1 || s.Errors[0].Details["site"] != "linkedin" {
		t.Fatalf("unexpected error log: %+v", s.Errors)
	}

	clone := s.Clone()
	clone.Errors[0].Message = "changed"
	if s.Errors[0].Message != "blocked" {
		t.Fatalf("clone must not share the error log")
	}
}

func TestMatchQuality(t *testing.T) {
	t.Parallel()

	cases := map[float64]MatchQuality{
		0.95: QualityExcellent,
		0.8:  QualityExcellent,
		0.6:  QualityGood,
		0.45: QualityFair,
		0.1:  QualityPoor,
	}
	for score, want := range cases {
		m := &Match{CompatibilityScore: score}
		if got := m.Quality(); got != want {
			t.Fatalf("score %v: expected %s, got %s", score, want, got)
		}
	}
}
