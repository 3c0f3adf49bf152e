package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/ai"
	"github.com/spigell/jobscout/internal/ai/gemini"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/secrets"
)

const geminiAPIKeyEnv = "GEMINI_API_KEY"

var keywordsCmd = &cobra.Command{
	Use:   "keywords [resume-file]",
	Short: "Extract search keywords from a resume with Gemini",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runKeywords(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(keywordsCmd)

	keywordsCmd.Flags().Bool("print-json", false, "print the whole extraction as json")
}

func runKeywords(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating a logger: %s\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	path := config.Rank.ResumeFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		l.Fatal("no resume given, pass a file or set rank.resume-file")
	}

	extraction, err := extractFromFile(ctx, config.AI, path, l)
	if err != nil {
		l.Fatal("extracting keywords", zap.String("resume", path), zap.Error(err))
	}

	if asJSON, _ := cmd.Flags().GetBool("print-json"); asJSON {
		out, _ := json.MarshalIndent(extraction, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println(strings.Join(extraction.Keywords, ", "))
}

// newExtractor resolves the api key and builds the Gemini keyword extractor.
func newExtractor(ctx context.Context, c *AIConfig, l *zap.Logger) (ai.KeywordExtractor, error) {
	if c == nil || c.Gemini == nil {
		c = &AIConfig{Provider: "gemini", Gemini: &GeminiConfig{}}
	}
	if c.Provider != "" && c.Provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider %q", c.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: c.Gemini.APIKey,
		Env:   geminiAPIKeyEnv,
		File:  c.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, c.Gemini.Model, c.Gemini.MaxRetries, logger.Named(l, "gemini"))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	l.Debug("gemini client ready", zap.String("model", generator.Model()))

	return gemini.NewExtractor(generator, logger.Named(l, "keywords"), c.Gemini.MaxLogLength), nil
}

func extractFromFile(ctx context.Context, c *AIConfig, path string, l *zap.Logger) (*ai.Extraction, error) {
	resume, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume: %w", err)
	}

	extractor, err := newExtractor(ctx, c, l)
	if err != nil {
		return nil, err
	}
	return extractor.ExtractKeywords(ctx, string(resume))
}
