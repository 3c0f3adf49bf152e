package matching

import (
	"testing"

	"github.com/spigell/jobscout/internal/jobs"
	"github.com/stretchr/testify/assert"
)

func job(description string, tech ...string) *jobs.Job {
	return &jobs.Job{
		Title:        "Developer",
		Company:      "Acme",
		Description:  description,
		Technologies: tech,
		SourceURL:    "https://example.com/job/1",
	}
}

func TestScoreAllExact(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	res := e.Score(
		[]string{"python", "django", "postgresql"},
		job("We need a Python developer with Django and PostgreSQL experience.", "python"),
	)

	assert.Equal(t, 1.0, res.CompatibilityScore)
	assert.Equal(t, []string{"python", "django", "postgresql"}, res.MatchingKeywords)
	assert.Empty(t, res.MissingKeywords)
	assert.Equal(t, 1.0, res.KeywordMatchRatio)
	assert.Equal(t, 1.0, res.TechnicalMatchScore)
	assert.Equal(t, LanguageBonus, res.LanguageMatchBonus)
}

func TestScoreEmptyInputs(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	for name, tc := range map[string]struct {
		keywords []string
		job      *jobs.Job
	}{
		"no keywords":       {nil, job("Python developer")},
		"blank keywords":    {[]string{" ", ""}, job("Python developer")},
		"empty description": {[]string{"python"}, job("   ", "python")},
		"nil job":           {[]string{"python"}, nil},
	} {
		t.Run(name, func(t *testing.T) {
			res := e.Score(tc.keywords, tc.job)
			assert.Zero(t, res.CompatibilityScore)
			assert.NotNil(t, res.MatchingKeywords)
			assert.NotNil(t, res.MissingKeywords)
			assert.Empty(t, res.MatchingKeywords)
			assert.Empty(t, res.MissingKeywords)
			assert.Zero(t, res.KeywordMatchRatio)
		})
	}
}

func TestScoreUsesDistinctFuzzyThresholds(t *testing.T) {
	t.Parallel()

	// "postgres" vs "postgresql" has a bigram similarity of 7/9.
	j := job("Backend role using postgres daily.")
	e := NewEngine()

	assert.InDelta(t, 0.65, e.Compatibility([]string{"postgresql"}, j), 1e-9)

	res := e.Score([]string{"postgresql"}, j)
	assert.InDelta(t, 0.65, res.CompatibilityScore, 1e-9)
	assert.Empty(t, res.MatchingKeywords)
	assert.Equal(t, []string{"postgresql"}, res.MissingKeywords)
	assert.Zero(t, res.TechnicalMatchScore)
	assert.Zero(t, res.KeywordMatchRatio)
}

func TestScoreTechnologyCountsAsExact(t *testing.T) {
	t.Parallel()

	res := NewEngine().Score(
		[]string{"python", "react", "mongodb"},
		job("Looking for a full-stack developer", "Python", "React", "MongoDB", "node.js"),
	)
	assert.Equal(t, 1.0, res.CompatibilityScore)
	assert.Len(t, res.MatchingKeywords, 3)
}

func TestScoreLowMatch(t *testing.T) {
	t.Parallel()

	res := NewEngine().Score(
		[]string{"python", "django", "postgresql", "docker"},
		job(`We are looking for a Java developer with Spring Boot experience.
The candidate should have knowledge of Oracle databases and Kubernetes.
Experience with GraphQL is preferred.`, "java", "spring boot"),
	)
	assert.InDelta(t, 0.05, res.CompatibilityScore, 1e-9)
	assert.Empty(t, res.MatchingKeywords)
	assert.Len(t, res.MissingKeywords, 4)
}

func TestScoreIsBounded(t *testing.T) {
	t.Parallel()

	keywordSets := [][]string{
		{"python"},
		{"go", "kubernetes", "kafka", "teamwork"},
		{"desenvolvimento", "java", "comunicação"},
		{"a", "b", "c"},
		{"rest api", "sql", "aws", "docker", "linux", "git"},
	}
	descriptions := []string{
		"Python",
		"Desenvolvedor Java com experiência em desenvolvimento de software e comunicação.",
		"Senior Go engineer: kubernetes, kafka, rest api, sql, aws, docker, linux, git.",
		"x",
		"kubernete kafk pythn",
	}

	e := NewEngine()
	for _, kws := range keywordSets {
		for _, d := range descriptions {
			res := e.Score(kws, job(d, "go"))
			assert.GreaterOrEqual(t, res.CompatibilityScore, 0.0)
			assert.LessOrEqual(t, res.CompatibilityScore, 1.0)
			assert.GreaterOrEqual(t, res.KeywordMatchRatio, 0.0)
			assert.LessOrEqual(t, res.KeywordMatchRatio, 1.0)
			assert.Len(t, append(res.MatchingKeywords, res.MissingKeywords...), len(NormalizeKeywords(kws)))
		}
	}
}

func TestNormalizeKeywords(t *testing.T) {
	t.Parallel()

	got := NormalizeKeywords([]string{" Python ", "python", "", "Rest  API", "Go"})
	assert.Equal(t, []string{"python", "rest api", "go"}, got)
}

func TestIsTechnical(t *testing.T) {
	t.Parallel()

	for _, kw := range []string{"python", "machine learning", "software development", "API design", "typescript", "kubernetes"} {
		assert.True(t, IsTechnical(kw), kw)
	}
	for _, kw := range []string{"communication", "teamwork", "leadership"} {
		assert.False(t, IsTechnical(kw), kw)
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LanguagePortuguese, DetectLanguage("Desenvolvedor com experiência em projeto"))
	assert.Equal(t, LanguageEnglish, DetectLanguage("Software engineer with work experience"))
	assert.Equal(t, LanguagePortuguese, DetectLanguage("integração, gestão, comunicação"))
	assert.Equal(t, LanguageEnglish, DetectLanguage("são"))
	assert.Equal(t, LanguageEnglish, DetectLanguage(""))
}

func TestBigramSimilarity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, BigramSimilarity("python", "python"))
	assert.Zero(t, BigramSimilarity("", "python"))
	assert.Zero(t, BigramSimilarity("python", ""))
	assert.Zero(t, BigramSimilarity("a", "b"))

	partial := BigramSimilarity("javascript", "java")
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)

	assert.Less(t, BigramSimilarity("python", "xyz"), 0.5)
	assert.InDelta(t, 7.0/9.0, BigramSimilarity("postgresql", "postgres"), 1e-9)
}
