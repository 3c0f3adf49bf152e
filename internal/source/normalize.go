package source

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spigell/jobscout/internal/jobs"
)

// MaxTechnologies caps the technologies extracted from one posting.
const MaxTechnologies = 10

type indicators[T any] struct {
	value T
	terms []string
}

// Checked in order, the first group with a hit wins.
var remoteIndicators = []indicators[jobs.RemoteType]{
	{jobs.RemoteTypeRemote, []string{"remote", "trabalho remoto", "home office"}},
	{jobs.RemoteTypeHybrid, []string{"hybrid", "híbrido", "presencial/remoto"}},
	{jobs.RemoteTypeOnsite, []string{"on-site", "onsite", "presencial", "escritório"}},
}

// Precedence is intern > junior > senior > lead > manager.
var experienceIndicators = []indicators[jobs.ExperienceLevel]{
	{jobs.ExperienceIntern, []string{"intern", "internship", "estagiário", "estágio"}},
	{jobs.ExperienceJunior, []string{"junior", "jr", "iniciante", "entry level"}},
	{jobs.ExperienceSenior, []string{"senior", "sr", "sênior"}},
	{jobs.ExperienceLead, []string{"lead", "tech lead", "líder", "principal"}},
	{jobs.ExperienceManager, []string{"manager", "gerente", "coordenador", "head of"}},
}

// Technologies is the canonical vocabulary, in the order results are reported.
var Technologies = []string{
	"python", "java", "javascript", "typescript", "react", "angular", "vue",
	"node.js", "django", "flask", "spring", "docker", "kubernetes", "aws",
	"azure", "gcp", "sql", "postgresql", "mysql", "mongodb", "redis", "git",
	"jenkins", "ci/cd", "agile", "scrum", "machine learning", "data science",
	"artificial intelligence", "ai", "ml", "go", "golang", "rust", "kafka",
}

// DetectRemoteType scans text for work-arrangement vocabulary. ok is false when nothing matched.
func DetectRemoteType(text string) (jobs.RemoteType, bool) {
	return detect(text, remoteIndicators)
}

// DetectExperience scans text for seniority vocabulary. ok is false when nothing matched.
func DetectExperience(text string) (jobs.ExperienceLevel, bool) {
	return detect(text, experienceIndicators)
}

// ExperienceOrDefault is DetectExperience for places where a level must be assigned.
func ExperienceOrDefault(text string) jobs.ExperienceLevel {
	if level, ok := DetectExperience(text); ok {
		return level
	}
	return jobs.ExperienceMid
}

// ExtractTechnologies returns vocabulary terms found in text, capped at MaxTechnologies.
func ExtractTechnologies(text string) []string {
	lower := strings.ToLower(text)
	found := make([]string, 0)
	for _, tech := range Technologies {
		if len(found) == MaxTechnologies {
			break
		}
		if ContainsTerm(lower, tech) {
			found = append(found, tech)
		}
	}
	return found
}

// MergeTechnologies appends extra entries not already present, ignoring case, and keeps the cap.
func MergeTechnologies(base []string, extra ...string) []string {
	out := append([]string(nil), base...)
	for _, e := range extra {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || len(out) >= MaxTechnologies {
			continue
		}
		dup := false
		for _, o := range out {
			if strings.EqualFold(o, e) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, e)
		}
	}
	return out
}

func detect[T any](text string, groups []indicators[T]) (T, bool) {
	lower := strings.ToLower(text)
	for _, g := range groups {
		for _, term := range g.terms {
			if ContainsTerm(lower, term) {
				return g.value, true
			}
		}
	}
	var zero T
	return zero, false
}

// ContainsTerm reports whether term occurs in text as a whole word or phrase.
// Both arguments are expected in lower case.
func ContainsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(term)
		if boundaryBefore(text, idx) && boundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[idx:])
		start = idx + size
	}
	return false
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return !isWordRune(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
