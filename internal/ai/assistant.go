package ai

import (
	"context"
	"regexp"
	"strings"
)

// MaxKeywords bounds the keyword list of an extraction.
const MaxKeywords = 15

// Extraction is the keyword list derived from a resume.
type Extraction struct {
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
	Language   string   `json:"language"`
}

// KeywordExtractor derives keywords from resume text.
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, resume string) (*Extraction, error)
}

var (
	latexCommand    = regexp.MustCompile(`\\[a-zA-Z]+\*?(?:\[[^\]]*\])?(?:\{[^}]*\})*`)
	latexComment    = regexp.MustCompile(`(?m)%.*$`)
	latexSpecial    = regexp.MustCompile(`[{}\\]`)
	whitespace      = regexp.MustCompile(`\s+`)
	openParenTail   = regexp.MustCompile(`\s*\([^)]*$`)
	keywordJunk     = regexp.MustCompile(`[^\p{L}\p{N}_\s.\-+#]`)
	explanatoryBits = []string{
		"i've limited", "prioritizing", "as requested", "technical and specific",
		"terms as requested", "limited the list", "focusing on", "removed some",
	}
	stopWords = map[string]struct{}{
		"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {},
		"for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "up": {}, "about": {},
		"into": {}, "through": {}, "during": {}, "before": {}, "after": {}, "above": {},
		"below": {}, "between": {}, "among": {}, "throughout": {}, "despite": {},
		"towards": {}, "upon": {}, "concerning": {}, "regarding": {}, "according": {},
		"including": {},
	}
)

// PlainText strips LaTeX markup so only readable resume text remains. Plain text passes through.
func PlainText(resume string) string {
	text := latexComment.ReplaceAllString(resume, "")
	text = latexCommand.ReplaceAllString(text, " ")
	text = latexSpecial.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// CleanKeywords lowercases, strips stray punctuation and drops stop words, short
// entries, explanatory fragments and duplicates. At most MaxKeywords are kept.
func CleanKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len([]rune(kw)) < 2 || explanatory(kw) {
			continue
		}

		kw = openParenTail.ReplaceAllString(kw, "")
		kw = strings.TrimSpace(keywordJunk.ReplaceAllString(kw, ""))
		if len([]rune(kw)) < 2 {
			continue
		}
		if _, stop := stopWords[kw]; stop {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)

		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

func explanatory(kw string) bool {
	for _, phrase := range explanatoryBits {
		if strings.Contains(kw, phrase) {
			return true
		}
	}
	return false
}
