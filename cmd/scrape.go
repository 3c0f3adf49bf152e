package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/scrape"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the configured job sites and store the jobs found",
	Run: func(cmd *cobra.Command, _ []string) {
		runScrape(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringSliceP("keywords", "k", nil, "search keywords, comma separated")
	scrapeCmd.Flags().StringP("location", "l", "", "search location")
	scrapeCmd.Flags().IntP("max-pages", "p", 0, "result pages per source")
	scrapeCmd.Flags().StringSliceP("sources", "s", nil, "sources to scrape (indeed, linkedin, headhunter)")
	scrapeCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation when the stored data is still fresh")

	viper.BindPFlag("scrape.keywords", scrapeCmd.Flags().Lookup("keywords"))
	viper.BindPFlag("scrape.location", scrapeCmd.Flags().Lookup("location"))
	viper.BindPFlag("scrape.max-pages", scrapeCmd.Flags().Lookup("max-pages"))
	viper.BindPFlag("scrape.sources", scrapeCmd.Flags().Lookup("sources"))
}

func runScrape(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := setup(ctx)
	defer d.close()
	logger := d.logger
	config := d.config.Scrape

	if len(config.Keywords) == 0 {
		logger.Fatal("no keywords to search for, set scrape.keywords or pass --keywords")
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		should, status, err := d.freshness().ShouldScrape(ctx)
		if err != nil {
			logger.Fatal("checking data freshness", zap.Error(err))
		}
		if !should && !confirmFreshScrape(status) {
			logger.Info("stored data is fresh, nothing to do")
			return
		}
	}

	orch, err := d.orchestrator(ctx, scrape.WithObserver(scrape.ObserverFunc(func(e scrape.Event) {
		if e.Type == scrape.EventScrapingSite && e.Status != scrape.SiteStarting {
			logger.Info("site finished",
				zap.String("site", e.Site),
				zap.String("status", string(e.Status)),
				zap.Int("jobs_found", e.JobsFound),
			)
		}
	})))
	if err != nil {
		logger.Fatal("preparing the scraper", zap.Error(err))
	}

	res, err := orch.Run(ctx, config.Keywords, config.Location, config.MaxPages)
	if res != nil {
		printScrapeResult(res)
	}

	var runErr *scrape.RunError
	switch {
	case errors.Is(err, scrape.ErrCancelled):
		logger.Warn("scrape cancelled")
		d.close()
		os.Exit(130)
	case errors.As(err, &runErr):
		logger.Fatal("scrape failed", zap.Int("errors", len(runErr.Errors)))
	case err != nil:
		logger.Fatal("scrape failed", zap.Error(err))
	}
}

func confirmFreshScrape(status scrape.FreshnessStatus) bool {
	prompt := promptui.Select{
		Label: fmt.Sprintf("Data is fresh (%d jobs, last scrape %s ago). Scrape anyway?",
			status.JobCount, status.Age.Round(time.Minute)),
		Items: []string{PromptYes, PromptNo},
	}

	_, result, err := prompt.Run()
	if err != nil {
		return false
	}
	return result == PromptYes
}

func printScrapeResult(res *scrape.Result) {
	fmt.Println(res.Summary())
	for _, o := range res.Outcomes {
		fmt.Printf("  %-12s %-13s pages: %d, jobs: %d, skipped records: %d\n",
			o.Source, o.Status, o.Pages, o.JobsFound, o.Skipped)
	}

	if len(res.Errors) == 0 {
		return
	}

	fmt.Println("\nProblems:")
	for _, e := range res.Errors {
		fmt.Printf("  - %s\n", e.UserMessage())
	}

	analysis := scrape.AnalyzeErrors(res.Errors)
	if len(analysis.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range analysis.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
	}
}
