package jobs

import (
	"strings"
	"time"
)

type RemoteType string

const (
	RemoteTypeRemote RemoteType = "remote"
	RemoteTypeOnsite RemoteType = "onsite"
	RemoteTypeHybrid RemoteType = "hybrid"
)

func (r RemoteType) Valid() bool {
	switch r {
	case RemoteTypeRemote, RemoteTypeOnsite, RemoteTypeHybrid:
		return true
	}
	return false
}

type ExperienceLevel string

const (
	ExperienceIntern  ExperienceLevel = "intern"
	ExperienceJunior  ExperienceLevel = "junior"
	ExperienceMid     ExperienceLevel = "mid"
	ExperienceSenior  ExperienceLevel = "senior"
	ExperienceLead    ExperienceLevel = "lead"
	ExperienceManager ExperienceLevel = "manager"
)

func (e ExperienceLevel) Valid() bool {
	switch e {
	case ExperienceIntern, ExperienceJunior, ExperienceMid, ExperienceSenior, ExperienceLead, ExperienceManager:
		return true
	}
	return false
}

// Job is a normalized job posting. SourceURL is the natural key used for upserts,
// ID is assigned by the store on first insert and never changes afterwards.
type Job struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Company         string          `json:"company"`
	Location        string          `json:"location,omitempty"`
	RemoteType      RemoteType      `json:"remote_type,omitempty"`
	ExperienceLevel ExperienceLevel `json:"experience_level,omitempty"`
	Technologies    []string        `json:"technologies,omitempty"`
	Description     string          `json:"description,omitempty"`
	SourceURL       string          `json:"source_url"`
	ApplicationURL  string          `json:"application_url,omitempty"`
	SourceSite      string          `json:"source_site"`
	ScrapedAt       time.Time       `json:"scraped_at"`
}

// HasTechnology reports whether the job declares the technology, ignoring case.
func (j *Job) HasTechnology(tech string) bool {
	tech = strings.TrimSpace(tech)
	for _, t := range j.Technologies {
		if strings.EqualFold(t, tech) {
			return true
		}
	}
	return false
}

// Overwrite copies mutable fields from src. Identity (ID, SourceURL) is kept.
func (j *Job) Overwrite(src *Job) {
	j.Title = src.Title
	j.Company = src.Company
	j.Location = src.Location
	j.RemoteType = src.RemoteType
	j.ExperienceLevel = src.ExperienceLevel
	j.Technologies = append([]string(nil), src.Technologies...)
	j.Description = src.Description
	j.ApplicationURL = src.ApplicationURL
	j.SourceSite = src.SourceSite
	j.ScrapedAt = src.ScrapedAt
}

func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Technologies = append([]string(nil), j.Technologies...)
	return &c
}

// UpsertResult describes what a store did with a saved job.
type UpsertResult struct {
	ID      int64
	Created bool
}
