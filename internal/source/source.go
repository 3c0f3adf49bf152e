// Package source turns raw search-result pages of job sites into normalized jobs.
package source

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/utils"
)

// Adapter knows how to address and parse the search results of one job site.
type Adapter interface {
	// Name is the source identifier stored in Job.SourceSite.
	Name() string
	// PageSize is the number of results on a full page. A shorter page ends pagination.
	PageSize() int
	// SearchURL returns the url of the zero-based results page.
	SearchURL(keywords []string, location string, page int) string
	// Parse extracts jobs from a page. Malformed records are skipped and counted,
	// a page without result containers yields an empty slice.
	Parse(payload []byte, sourceURL string) ([]*jobs.Job, int)
}

// Registry holds adapters by name, keeping registration order.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter, replacing an existing one with the same name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, ok := r.adapters[name]; !ok {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (available: %s)", name, strings.Join(r.sortedNames(), ", "))
	}
	return a, nil
}

// Select returns the named adapters in the given order, or all in registration order when names is empty.
func (r *Registry) Select(names ...string) ([]Adapter, error) {
	if len(names) == 0 {
		r.mu.RLock()
		defer r.mu.RUnlock()
		out := make([]Adapter, 0, len(r.order))
		for _, name := range r.order {
			out = append(out, r.adapters[name])
		}
		return out, nil
	}

	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		a, err := r.Get(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// draft holds the fields every adapter extracts before normalization.
type draft struct {
	title          string
	company        string
	location       string
	description    string
	sourceURL      string
	applicationURL string
	remoteHint     string
	extraTech      []string
}

func (d draft) valid() error {
	switch {
	case strings.TrimSpace(d.title) == "":
		return fmt.Errorf("missing title")
	case strings.TrimSpace(d.company) == "":
		return fmt.Errorf("missing company")
	case strings.TrimSpace(d.sourceURL) == "":
		return fmt.Errorf("missing url")
	}
	return nil
}

// normalize maps the free text of a draft onto the job enums.
func (d draft) normalize(site string, now time.Time) *jobs.Job {
	text := utils.JoinNonEmpty(" ", d.title, d.location, d.description, d.remoteHint)

	job := &jobs.Job{
		Title:          collapse(d.title),
		Company:        collapse(d.company),
		Location:       collapse(d.location),
		Description:    strings.TrimSpace(d.description),
		SourceURL:      strings.TrimSpace(d.sourceURL),
		ApplicationURL: strings.TrimSpace(d.applicationURL),
		SourceSite:     site,
		ScrapedAt:      now,
	}
	if job.ApplicationURL == "" {
		job.ApplicationURL = job.SourceURL
	}
	if remote, ok := DetectRemoteType(text); ok {
		job.RemoteType = remote
	}
	if level, ok := DetectExperience(d.title + " " + d.description); ok {
		job.ExperienceLevel = level
	}
	job.Technologies = MergeTechnologies(ExtractTechnologies(d.title+" "+d.description), d.extraTech...)

	return job
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
