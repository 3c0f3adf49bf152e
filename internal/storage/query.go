package storage

import (
	"fmt"
	"strings"

	"github.com/spigell/jobscout/internal/jobs"
)

// dialect hides the differences between the sql backends that matter to query building.
type dialect struct {
	placeholder func(n int) string
	// techMatch returns a predicate that is true when the technologies column
	// contains one of the given lower case values.
	techMatch func(placeholders []string) string
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	techMatch: func(ph []string) string {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(technologies) WHERE lower(json_each.value) IN (%s))", strings.Join(ph, ", "))
	},
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	techMatch: func(ph []string) string {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements_text(technologies) AS t(tech) WHERE lower(t.tech) IN (%s))", strings.Join(ph, ", "))
	},
}

// whereBuilder accumulates predicates and their positional arguments.
type whereBuilder struct {
	d     dialect
	parts []string
	args  []any
}

func (w *whereBuilder) next(v any) string {
	w.args = append(w.args, v)
	return w.d.placeholder(len(w.args))
}

func (w *whereBuilder) like(column, value string) string {
	return fmt.Sprintf(`lower(%s) LIKE %s ESCAPE '\'`, column, w.next("%"+escapeLike(strings.ToLower(value))+"%"))
}

func (w *whereBuilder) in(values []string) []string {
	ph := make([]string, 0, len(values))
	for _, v := range values {
		ph = append(ph, w.next(v))
	}
	return ph
}

func (w *whereBuilder) add(part string) {
	w.parts = append(w.parts, part)
}

func (w *whereBuilder) String() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

// buildWhere translates the filter part of q. It mirrors jobs.Query.Matches.
func buildWhere(d dialect, q jobs.Query) *whereBuilder {
	w := &whereBuilder{d: d}

	if q.Company != "" {
		w.add(w.like("company", q.Company))
	}
	if q.Location != "" {
		w.add(w.like("location", q.Location))
	}
	if q.Search != "" {
		w.add("(" + w.like("title", q.Search) + " OR " + w.like("company", q.Search) + " OR " + w.like("description", q.Search) + ")")
	}
	if len(q.RemoteTypes) > 0 {
		w.add(fmt.Sprintf("remote_type IN (%s)", strings.Join(w.in(toStrings(q.RemoteTypes)), ", ")))
	}
	if len(q.ExperienceLevels) > 0 {
		w.add(fmt.Sprintf("experience_level IN (%s)", strings.Join(w.in(toStrings(q.ExperienceLevels)), ", ")))
	}
	if len(q.SourceSites) > 0 {
		w.add(fmt.Sprintf("source_site IN (%s)", strings.Join(w.in(q.SourceSites), ", ")))
	}
	if len(q.Technologies) > 0 {
		lowered := make([]string, 0, len(q.Technologies))
		for _, t := range q.Technologies {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(t)))
		}
		w.add(d.techMatch(w.in(lowered)))
	}

	return w
}

// orderBy assumes a normalized query. id breaks ties so pages are stable.
func orderBy(q jobs.Query) string {
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	column := string(q.SortBy)
	if q.SortBy != jobs.SortScrapedAt {
		column = "lower(" + column + ")"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", column, dir)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func toStrings[T ~string](items []T) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, string(item))
	}
	return out
}
