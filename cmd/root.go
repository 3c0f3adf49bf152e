package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jobscout/internal/fetch"
	"github.com/spigell/jobscout/internal/scrape"
)

const (
	app       = "jobscout"
	envPrefix = "JOBSCOUT"
)

type Config struct {
	Storage *StorageConfig `mapstructure:"storage" validate:"required"`
	Fetch   fetch.Config   `mapstructure:"fetch"`
	Scrape  *ScrapeConfig  `mapstructure:"scrape" validate:"required"`
	Rank    *RankConfig    `mapstructure:"rank" validate:"required"`
	AI      *AIConfig      `mapstructure:"ai"`
	Server  *ServerConfig  `mapstructure:"server" validate:"required"`
}

type StorageConfig struct {
	// DSN is memory, a sqlite path or a postgres url.
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
	// Redis enables the shared source cooldown when set.
	Redis string `mapstructure:"redis"`
}

type ScrapeConfig struct {
	Keywords           []string                 `mapstructure:"keywords"`
	Location           string                   `mapstructure:"location"`
	Sources            []string                 `mapstructure:"sources"`
	MaxPages           int                      `mapstructure:"max-pages" validate:"gte=1,lte=50"`
	Concurrency        int                      `mapstructure:"concurrency" validate:"gte=1,lte=8"`
	FreshnessThreshold time.Duration            `mapstructure:"freshness-threshold" validate:"gte=0"`
	MinJobs            int                      `mapstructure:"min-jobs" validate:"gte=0"`
	PageDelays         map[string]time.Duration `mapstructure:"page-delays"`
}

type RankConfig struct {
	Keywords         []string `mapstructure:"keywords"`
	ResumeFile       string   `mapstructure:"resume-file"`
	ExcludeKeywords  []string `mapstructure:"exclude-keywords"`
	Limit            int      `mapstructure:"limit" validate:"gte=0"`
	ProfileID        string   `mapstructure:"profile-id"`
	MinScore         float64  `mapstructure:"min-score" validate:"gte=0,lte=1"`
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	RemoteTypes      []string `mapstructure:"remote-types" validate:"dive,oneof=remote hybrid onsite"`
	ExperienceLevels []string `mapstructure:"experience-levels" validate:"dive,oneof=intern junior mid senior lead manager"`
	ExcludeFile      string   `mapstructure:"exclude-file"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0,lte=10"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request-timeout" validate:"gte=0"`
	AutoScrape     bool          `mapstructure:"auto-scrape"`
	Interval       time.Duration `mapstructure:"interval" validate:"gte=0"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobscout scrapes job boards and ranks the stored jobs against your skills",
	}

	validate = validator.New()
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobscout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every key so JOBSCOUT_* variables are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	fc := fetch.DefaultConfig()
	v.SetDefault("fetch.retries", fc.Retries)
	v.SetDefault("fetch.base-delay", fc.BaseDelay)
	v.SetDefault("fetch.backoff-factor", fc.BackoffFactor)
	v.SetDefault("fetch.max-delay", fc.MaxDelay)
	v.SetDefault("fetch.timeout", fc.Timeout)
	v.SetDefault("fetch.default-retry-after", fc.DefaultRetryAfter)
	v.SetDefault("fetch.rotate-identity", fc.RotateIdentity)

	v.SetDefault("storage.dsn", "jobscout.db")
	v.SetDefault("storage.dsn-file", "")
	v.SetDefault("storage.redis", "")

	v.SetDefault("scrape.keywords", []string{})
	v.SetDefault("scrape.location", "")
	v.SetDefault("scrape.sources", []string{"indeed", "linkedin"})
	v.SetDefault("scrape.max-pages", 3)
	v.SetDefault("scrape.concurrency", 2)
	v.SetDefault("scrape.freshness-threshold", scrape.DefaultFreshnessThreshold)
	v.SetDefault("scrape.min-jobs", scrape.DefaultMinJobs)

	v.SetDefault("rank.keywords", []string{})
	v.SetDefault("rank.resume-file", "")
	v.SetDefault("rank.exclude-keywords", []string{})
	v.SetDefault("rank.limit", 20)
	v.SetDefault("rank.profile-id", "")
	v.SetDefault("rank.min-score", 0.0)
	v.SetDefault("rank.exclude-file", "")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request-timeout", time.Minute)
	v.SetDefault("server.auto-scrape", false)
	v.SetDefault("server.interval", time.Hour)
}

func initConfig() {
	// .env is optional; the real environment always wins.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	bindEnv(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults are enough to run without a file, but a broken file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

// bindEnv maps keys like scrape.max-pages to JOBSCOUT_SCRAPE_MAX_PAGES.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the struct tags of the whole config tree.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is empty")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
