package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/ranking"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show data freshness, recent scrape sessions and saved matches",
	Run: func(cmd *cobra.Command, _ []string) {
		runStatus(cmd)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntP("sessions", "n", 5, "number of recent sessions to show")
	statusCmd.Flags().Int("matches", 0, "number of saved matches of rank.profile-id to show")
}

func runStatus(cmd *cobra.Command) {
	ctx := context.Background()
	d := setup(ctx)
	defer d.close()
	l := d.logger

	should, st, err := d.freshness().ShouldScrape(ctx)
	if err != nil {
		l.Fatal("reading freshness", zap.Error(err))
	}

	fmt.Printf("Stored jobs: %d\n", st.JobCount)
	if st.LastScrape != nil {
		fmt.Printf("Last scrape: %s (%s ago)\n", st.LastScrape.Local().Format(time.DateTime), st.Age.Round(time.Minute))
	} else {
		fmt.Println("Last scrape: never")
	}
	fmt.Printf("Stale: %t (threshold %s), scrape recommended: %t\n", st.Stale, st.Threshold, should)

	limit, _ := cmd.Flags().GetInt("sessions")
	sessions, err := d.store.ListSessions(ctx, limit)
	if err != nil {
		l.Fatal("listing sessions", zap.Error(err))
	}
	if len(sessions) > 0 {
		fmt.Println("\nRecent sessions:")
	}
	for _, s := range sessions {
		fmt.Printf("  %s %-9s %s found: %d, saved: %d, errors: %d, keywords: %s\n",
			s.StartedAt.Local().Format(time.DateTime), s.Status, s.Duration().Round(time.Second),
			s.JobsFound, s.JobsSaved, len(s.Errors), strings.Join(s.Keywords, ", "))
	}

	n, _ := cmd.Flags().GetInt("matches")
	if n <= 0 {
		return
	}
	matches, err := d.store.ListMatches(ctx, d.config.Rank.ProfileID, n)
	if err != nil {
		l.Fatal("listing matches", zap.Error(err))
	}
	if len(matches) > 0 {
		fmt.Println("\nSaved matches:")
	}
	for _, m := range matches {
		note := ""
		if ranking.Stale(m) {
			note = fmt.Sprintf(" (scored by algorithm v%d, rank again to refresh)", m.AlgorithmVersion)
		}
		fmt.Printf("  job %d: %.3f %s%s\n", m.JobID, m.CompatibilityScore, m.Quality(), note)
	}
}
