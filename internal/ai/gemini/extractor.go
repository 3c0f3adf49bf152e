package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/jobscout/internal/ai"
	"github.com/spigell/jobscout/internal/matching"
	"github.com/spigell/jobscout/internal/utils"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// extractionConfidence is reported for every successful model extraction.
const extractionConfidence = 0.8

const defaultMaxLogLength = 200

var (
	//go:embed prompt_en.md
	promptEnglish string
	//go:embed prompt_pt.md
	promptPortuguese string
	//go:embed keywords.schema.json
	keywordsSchema string
)

var keywordsSchemaLoader = gojsonschema.NewStringLoader(keywordsSchema)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Extractor asks Gemini for resume keywords.
type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

// ExtractKeywords sends the plain resume text with a prompt in the detected language.
// Any failure of the model or of its answer is returned as an error.
func (e *Extractor) ExtractKeywords(ctx context.Context, resume string) (*ai.Extraction, error) {
	text := ai.PlainText(resume)
	if text == "" {
		return nil, errors.New("resume text is empty")
	}

	lang := matching.DetectLanguage(text)
	system := promptEnglish
	if lang == matching.LanguagePortuguese {
		system = promptPortuguese
	}

	e.logger.Debug("gemini keyword request",
		zap.String("language", string(lang)),
		zap.Int("text_length", utf8.RuneCountInString(text)),
		zap.String("text_preview", utils.TruncateForLog(text, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, system, text)
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}

	e.logger.Debug("gemini keyword response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	keywords, err := parseKeywords(raw)
	if err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return nil, errors.New("model returned no usable keywords")
	}

	return &ai.Extraction{
		Keywords:   keywords,
		Confidence: extractionConfidence,
		Language:   string(lang),
	}, nil
}

func parseKeywords(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	result, err := gojsonschema.Validate(keywordsSchemaLoader, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("gemini response does not match schema: %s", strings.Join(msgs, "; "))
	}

	var payload struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	return ai.CleanKeywords(payload.Keywords), nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
