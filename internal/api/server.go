// Package api exposes stored jobs, rankings and scrape sessions over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/ranking"
	"github.com/spigell/jobscout/internal/scrape"
	"go.uber.org/zap"
)

// Scraper runs scrape sessions in the background of the server.
type Scraper interface {
	Run(ctx context.Context, keywords []string, location string, maxPages int) (*scrape.Result, error)
	CancelActive() []string
	Active() []string
}

type Config struct {
	Addr            string
	DefaultMaxPages int
	RequestTimeout  time.Duration
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     Config
	router     http.Handler
	httpServer *http.Server
	store      jobs.Store
	scraper    Scraper
	ranker     *ranking.Service
	freshness  *scrape.Freshness
	gatherer   prometheus.Gatherer
	logger     *zap.Logger

	// base outlives requests so background scrapes are not tied to the request that started them.
	base       context.Context
	stopBase   context.CancelFunc
	background sync.WaitGroup
	running    atomic.Bool
}

func NewServer(cfg Config, store jobs.Store, scraper Scraper, ranker *ranking.Service, freshness *scrape.Freshness, gatherer prometheus.Gatherer, l *zap.Logger) *Server {
	if cfg.DefaultMaxPages <= 0 {
		cfg.DefaultMaxPages = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if ranker == nil {
		ranker = ranking.NewService(nil, l)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if l == nil {
		l = zap.NewNop()
	}

	base, stop := context.WithCancel(context.Background())
	s := &Server{
		config:    cfg,
		store:     store,
		scraper:   scraper,
		ranker:    ranker,
		freshness: freshness,
		gatherer:  gatherer,
		logger:    l,
		base:      base,
		stopBase:  stop,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.config.RequestTimeout + 5*time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", s.config.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels running scrapes and waits for them to record their sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.stopBase()

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// StartScrape launches a run in the background. It reports false when a run is already active.
func (s *Server) StartScrape(keywords []string, location string, maxPages int) bool {
	if s.scraper == nil || len(s.scraper.Active()) > 0 {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		return false
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer s.running.Store(false)
		res, err := s.scraper.Run(s.base, keywords, location, maxPages)
		switch {
		case errors.Is(err, scrape.ErrCancelled):
			s.logger.Warn("background scrape cancelled")
		case err != nil:
			s.logger.Error("background scrape failed", zap.Error(err))
		default:
			s.logger.Info("background scrape finished", zap.String("summary", res.Summary()))
		}
	}()
	return true
}
