package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/matching"
	"go.uber.org/zap"
)

// ExcludedJob is an entry of the exclude file.
type ExcludedJob struct {
	SourceURL  string    `json:"source_url"`
	Title      string    `json:"title,omitempty"`
	Company    string    `json:"company,omitempty"`
	ExcludedAt time.Time `json:"excluded_at"`
}

// ExcludedJobs is the content of the exclude file.
type ExcludedJobs struct {
	Items []*ExcludedJob `json:"items"`
}

// LoadExcluded reads an exclude file. A missing or empty file holds no entries.
func LoadExcluded(path string) (*ExcludedJobs, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ExcludedJobs{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &excluded, nil
}

// ToExcluded converts results into exclude file entries.
func ToExcluded(results []matching.Result, now time.Time) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	for _, r := range results {
		if r.Job == nil {
			continue
		}
		excluded.Items = append(excluded.Items, &ExcludedJob{
			SourceURL:  r.Job.SourceURL,
			Title:      r.Job.Title,
			Company:    r.Job.Company,
			ExcludedAt: now.UTC(),
		})
	}
	return excluded
}

// Append adds entries whose source url is not excluded yet.
func (e *ExcludedJobs) Append(other *ExcludedJobs) {
	seen := e.urls()
	for _, item := range other.Items {
		if _, ok := seen[item.SourceURL]; ok {
			continue
		}
		seen[item.SourceURL] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedJobs) ToFile(path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (e *ExcludedJobs) urls() map[string]struct{} {
	out := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		out[item.SourceURL] = struct{}{}
	}
	return out
}

type excludeFileFilter struct {
	toggle
	path   string
	logger *zap.Logger
}

// NewExcludeFile removes jobs listed in the exclude file at path. An empty path drops nothing.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludeFileFilter{path: strings.TrimSpace(path), logger: logger}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, results []matching.Result) ([]matching.Result, Step, error) {
	initial := len(results)
	if f.path == "" {
		return results, step(initial, results), nil
	}

	excluded, err := LoadExcluded(f.path)
	if err != nil {
		return results, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	urls := excluded.urls()
	left, dropped := keep(results, func(r matching.Result) bool {
		if r.Job == nil {
			return true
		}
		_, skip := urls[r.Job.SourceURL]
		return !skip
	})
	if len(dropped) > 0 {
		f.logger.Info("excluding jobs based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(left)),
		)
	}
	return left, step(initial, left), nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
		if excluded, err := LoadExcluded(f.path); err == nil {
			details["entries"] = strconv.Itoa(len(excluded.Items))
		}
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
