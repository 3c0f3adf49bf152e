package matching

import "strings"

type Language string

const (
	LanguagePortuguese Language = "pt"
	LanguageEnglish    Language = "en"
)

var (
	portugueseIndicators = []string{
		"experiência", "formação", "educação", "habilidades", "competências",
		"trabalho", "empresa", "projeto", "desenvolvimento", "conhecimento",
		"universidade", "curso", "graduação", "mestrado", "doutorado",
		"desenvolvedor", "engenheiro", "bacharelado", "ciência", "computação",
	}
	englishIndicators = []string{
		"experience", "education", "skills", "work", "company", "project",
		"development", "knowledge", "university", "degree", "bachelor",
		"master", "phd", "software", "engineer", "developer", "computer",
		"science",
	}
	portuguesePatterns = []string{"ção", "ões", "ão", "ã", "ê", "ô", "ç"}
)

// DetectLanguage guesses between portuguese and english by counting lexicon hits.
// A tie is broken by portuguese diacritic patterns, english otherwise.
func DetectLanguage(text string) Language {
	lower := strings.ToLower(text)
	pt := countPresent(lower, portugueseIndicators)
	en := countPresent(lower, englishIndicators)

	if pt == en && countPresent(lower, portuguesePatterns) > 2 {
		return LanguagePortuguese
	}
	if pt > en {
		return LanguagePortuguese
	}
	return LanguageEnglish
}

func countPresent(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}
