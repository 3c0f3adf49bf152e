package matching

import (
	"strings"
	"unicode"
)

// NormalizeKeywords lower-cases, trims and deduplicates keywords, keeping first-seen order.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.Join(strings.Fields(strings.ToLower(k)), " ")
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Substrings that make a keyword technical.
var technicalIndicators = []string{
	"python", "java", "javascript", "typescript", "react", "angular", "vue",
	"node", "django", "flask", "spring", "sql", "docker", "kubernetes", "aws",
	"azure", "gcp", "cloud", "devops", "machine learning", "api", "git", "linux",
	"database", "framework", "library", "algorithm", "programming",
	"development", "software", "golang", "rust", "kafka", "redis", "mongodb",
}

// IsTechnical reports whether the keyword contains a technical indicator.
func IsTechnical(keyword string) bool {
	k := strings.ToLower(keyword)
	for _, ind := range technicalIndicators {
		if strings.Contains(k, ind) {
			return true
		}
	}
	return false
}

// words splits text into lower case tokens, keeping + and # so c++ and c# survive.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}
