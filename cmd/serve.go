package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/api"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/ranking"
	"github.com/spigell/jobscout/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the jobs api and optionally refresh stale data on a schedule",
	Run: func(_ *cobra.Command, _ []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address")
	serveCmd.Flags().Bool("auto-scrape", false, "scrape scrape.keywords whenever the stored data is stale")
	serveCmd.Flags().Duration("interval", 0, "how often to check freshness when auto scrape is on")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.auto-scrape", serveCmd.Flags().Lookup("auto-scrape"))
	viper.BindPFlag("server.interval", serveCmd.Flags().Lookup("interval"))
}

func runServe() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := setup(ctx)
	defer d.close()
	l := d.logger
	config := d.config

	l.Info("starting the jobscout server", zap.String("version", version))

	orch, err := d.orchestrator(ctx)
	if err != nil {
		l.Fatal("preparing the scraper", zap.Error(err))
	}
	freshness := d.freshness()

	server := api.NewServer(
		api.Config{
			Addr:            config.Server.Addr,
			DefaultMaxPages: config.Scrape.MaxPages,
			RequestTimeout:  config.Server.RequestTimeout,
		},
		d.store,
		orch,
		ranking.NewService(nil, logger.Named(l, "ranking")),
		freshness,
		d.registry,
		logger.Named(l, "api"),
	)

	var sched *scheduler.Scheduler
	if config.Server.AutoScrape {
		if len(config.Scrape.Keywords) == 0 {
			l.Fatal("auto scrape needs scrape.keywords")
		}
		sched, err = scheduler.New(config.Server.Interval, freshness, func(ctx context.Context) error {
			if active := orch.Active(); len(active) > 0 {
				l.Info("a scrape started from the api is running, skipping", zap.Strings("sessions", active))
				return nil
			}
			_, err := orch.Run(ctx, config.Scrape.Keywords, config.Scrape.Location, config.Scrape.MaxPages)
			return err
		}, logger.Named(l, "scheduler"))
		if err != nil {
			l.Fatal("creating the scheduler", zap.Error(err))
		}
		if err := sched.Start(ctx); err != nil {
			l.Fatal("starting the scheduler", zap.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		l.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			l.Error("http server stopped", zap.Error(err))
		}
	}

	// Cancels scheduled scrapes when the server stopped on its own.
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("graceful shutdown failed", zap.Error(err))
	}
}
