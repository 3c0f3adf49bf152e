package jobs

import (
	"strings"
)

const (
	DefaultPerPage = 30
	MaxPerPage     = 100
)

type SortField string

const (
	SortScrapedAt SortField = "scraped_at"
	SortTitle     SortField = "title"
	SortCompany   SortField = "company"
)

// Query filters and paginates stored jobs. Zero values mean "no filter".
type Query struct {
	Company          string            `json:"company,omitempty"`
	Location         string            `json:"location,omitempty"`
	Search           string            `json:"search,omitempty"`
	RemoteTypes      []RemoteType      `json:"remote_types,omitempty"`
	ExperienceLevels []ExperienceLevel `json:"experience_levels,omitempty"`
	SourceSites      []string          `json:"source_sites,omitempty"`
	Technologies     []string          `json:"technologies,omitempty"`

	SortBy  SortField `json:"sort_by,omitempty"`
	Desc    bool      `json:"desc,omitempty"`
	Page    int       `json:"page,omitempty"`
	PerPage int       `json:"per_page,omitempty"`
}

// Normalize fills defaults and clamps pagination.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	switch q.SortBy {
	case SortTitle, SortCompany, SortScrapedAt:
	default:
		q.SortBy = SortScrapedAt
		q.Desc = true
	}
	q.Company = strings.TrimSpace(q.Company)
	q.Location = strings.TrimSpace(q.Location)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func (q Query) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Matches applies the filter part of the query to a single job.
func (q Query) Matches(j *Job) bool {
	if q.Company != "" && !containsFold(j.Company, q.Company) {
		return false
	}
	if q.Location != "" && !containsFold(j.Location, q.Location) {
		return false
	}
	if q.Search != "" &&
		!containsFold(j.Title, q.Search) &&
		!containsFold(j.Company, q.Search) &&
		!containsFold(j.Description, q.Search) {
		return false
	}
	if len(q.RemoteTypes) > 0 && !contains(q.RemoteTypes, j.RemoteType) {
		return false
	}
	if len(q.ExperienceLevels) > 0 && !contains(q.ExperienceLevels, j.ExperienceLevel) {
		return false
	}
	if len(q.SourceSites) > 0 && !contains(q.SourceSites, j.SourceSite) {
		return false
	}
	if len(q.Technologies) > 0 {
		found := false
		for _, tech := range q.Technologies {
			if j.HasTechnology(tech) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Page is one page of query results.
type Page struct {
	Jobs    []*Job `json:"jobs"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

func (p *Page) TotalPages() int {
	if p.PerPage <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p *Page) HasNext() bool {
	return p.Page < p.TotalPages()
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
