package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/matching"
	"github.com/spigell/jobscout/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the stored jobs against your keywords",
	Run: func(cmd *cobra.Command, _ []string) {
		runRank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringSliceP("keywords", "k", nil, "your skills, comma separated")
	rankCmd.Flags().StringP("resume", "r", "", "extract keywords from this resume with Gemini and add them to --keywords")
	rankCmd.Flags().StringSlice("exclude-keywords", nil, "keywords to drop from the merged list, comma separated")
	rankCmd.Flags().IntP("limit", "n", 0, "show at most n jobs, 0 shows all")
	rankCmd.Flags().Float64("min-score", 0, "drop jobs below this compatibility score")
	rankCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")
	rankCmd.Flags().Bool("save", false, "store the ranking as match snapshots")
	rankCmd.Flags().Bool("exclude-shown", false, "append the shown jobs to the exclude file")
	rankCmd.Flags().Bool("print-json", false, "print the results as json")

	viper.BindPFlag("rank.keywords", rankCmd.Flags().Lookup("keywords"))
	viper.BindPFlag("rank.resume-file", rankCmd.Flags().Lookup("resume"))
	viper.BindPFlag("rank.exclude-keywords", rankCmd.Flags().Lookup("exclude-keywords"))
	viper.BindPFlag("rank.limit", rankCmd.Flags().Lookup("limit"))
	viper.BindPFlag("rank.min-score", rankCmd.Flags().Lookup("min-score"))
	viper.BindPFlag("rank.exclude-file", rankCmd.Flags().Lookup("exclude-file"))
}

func runRank(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := setup(ctx)
	defer d.close()
	l := d.logger
	config := d.config.Rank

	var extracted []string
	if config.ResumeFile != "" {
		extraction, err := extractFromFile(ctx, d.config.AI, config.ResumeFile, l)
		if err != nil {
			l.Fatal("extracting keywords from the resume", zap.Error(err))
		}
		extracted = extraction.Keywords
		l.Info("keywords extracted from the resume", zap.Strings("keywords", extracted))
	}
	keywords := mergeKeywords(config.Keywords, extracted, config.ExcludeKeywords)
	if len(keywords) == 0 {
		l.Fatal("no keywords to rank with, set rank.keywords or pass --keywords or --resume")
	}
	l.Debug("ranking keywords", zap.Strings("keywords", keywords))

	results, err := ranking.NewService(nil, logger.Named(l, "ranking")).RankStored(ctx, d.store, keywords, jobs.Query{})
	if err != nil {
		l.Fatal("ranking stored jobs", zap.Error(err))
	}

	steps := buildFilters(config, l)
	for _, s := range filtering.Describe(steps) {
		l.Debug("filter", zap.String("name", s.Name), zap.Bool("enabled", s.Enabled), zap.Any("details", s.Details))
	}

	results, err = filtering.Run(ctx, logger.Named(l, "filtering"), steps, results)
	if err != nil {
		l.Fatal("filtering ranked jobs", zap.Error(err))
	}
	if config.Limit > 0 && len(results) > config.Limit {
		results = results[:config.Limit]
	}

	if asJSON, _ := cmd.Flags().GetBool("print-json"); asJSON {
		out, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(out))
	} else {
		printRanking(results)
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		matches := ranking.Snapshot(config.ProfileID, results, time.Now().UTC())
		if err := d.store.SaveMatches(ctx, matches); err != nil {
			l.Fatal("saving match snapshots", zap.Error(err))
		}
		l.Info("match snapshots saved", zap.Int("matches", len(matches)), zap.Int("algorithm_version", ranking.AlgorithmVersion))
	}

	if shown, _ := cmd.Flags().GetBool("exclude-shown"); shown {
		if err := appendToExcludeFile(config.ExcludeFile, results, time.Now().UTC()); err != nil {
			l.Fatal("updating the exclude file", zap.Error(err))
		}
		l.Info("jobs appended to the exclude file", zap.String("file", config.ExcludeFile), zap.Int("jobs", len(results)))
	}
}

// mergeKeywords joins the configured and extracted keywords into one normalized set
// and removes the excluded ones.
func mergeKeywords(user, extracted, excluded []string) []string {
	merged := matching.NormalizeKeywords(append(append([]string{}, user...), extracted...))
	if len(excluded) == 0 {
		return merged
	}
	drop := make(map[string]struct{}, len(excluded))
	for _, k := range matching.NormalizeKeywords(excluded) {
		drop[k] = struct{}{}
	}
	kept := merged[:0]
	for _, k := range merged {
		if _, ok := drop[k]; !ok {
			kept = append(kept, k)
		}
	}
	return kept
}

// buildFilters maps the rank config onto filtering steps. The exclude file step is added only when a file is set.
func buildFilters(c *RankConfig, l *zap.Logger) []filtering.Filter {
	remote := make([]jobs.RemoteType, 0, len(c.RemoteTypes))
	for _, r := range c.RemoteTypes {
		remote = append(remote, jobs.RemoteType(r))
	}
	levels := make([]jobs.ExperienceLevel, 0, len(c.ExperienceLevels))
	for _, e := range c.ExperienceLevels {
		levels = append(levels, jobs.ExperienceLevel(e))
	}

	steps := []filtering.Filter{
		filtering.NewMinScore(c.MinScore),
		filtering.NewExcludedCompanies(c.ExcludeCompanies),
		filtering.NewRemoteTypes(remote),
		filtering.NewExperienceLevels(levels),
	}
	if c.ExcludeFile != "" {
		steps = append(steps, filtering.NewExcludeFile(c.ExcludeFile, logger.Named(l, "exclude-file")))
	}
	return steps
}

func appendToExcludeFile(path string, results []matching.Result, now time.Time) error {
	if path == "" {
		return fmt.Errorf("no exclude file configured")
	}
	excluded, err := filtering.LoadExcluded(path)
	if err != nil {
		return err
	}
	excluded.Append(filtering.ToExcluded(results, now))
	return excluded.ToFile(path)
}

func printRanking(results []matching.Result) {
	if len(results) == 0 {
		fmt.Println("No jobs matched.")
		return
	}
	for i, r := range results {
		m := jobs.Match{CompatibilityScore: r.CompatibilityScore}
		fmt.Printf("%3d. %.3f %-9s %s @ %s\n     %s\n", i+1, r.CompatibilityScore, m.Quality(), r.Job.Title, r.Job.Company, r.Job.SourceURL)
		if len(r.MissingKeywords) > 0 {
			fmt.Printf("     missing: %v\n", r.MissingKeywords)
		}
	}
}
