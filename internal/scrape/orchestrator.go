// Package scrape drives paginated scraping of job sources and persists the results.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/jobscout/internal/fetch"
	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/metrics"
	"github.com/spigell/jobscout/internal/source"
	"github.com/spigell/jobscout/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// wait is swapped in tests to skip politeness delays.
var wait = utils.WaitFor

// DefaultPageDelays are the pauses between two pages of the same source.
var DefaultPageDelays = map[string]time.Duration{
	source.IndeedName:     2 * time.Second,
	source.LinkedInName:   3 * time.Second,
	source.HeadHunterName: time.Second,
}

const defaultPageDelay = 2 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context, url, source string) (*fetch.Payload, error)
}

// Cooldown remembers sources that asked us to back off.
type Cooldown interface {
	Mark(ctx context.Context, source string, ttl time.Duration) error
	Remaining(ctx context.Context, source string) (time.Duration, error)
}

type Orchestrator struct {
	fetcher     Fetcher
	adapters    []source.Adapter
	store       jobs.Store
	observers   []Observer
	logger      *zap.Logger
	metrics     *metrics.Metrics
	cooldown    Cooldown
	concurrency int
	pageDelays  map[string]time.Duration
	now         func() time.Time
	newID       func() string

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

type Option func(*Orchestrator)

func WithObserver(o Observer) Option {
	return func(orc *Orchestrator) {
		if o != nil {
			orc.observers = append(orc.observers, o)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(orc *Orchestrator) { orc.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(orc *Orchestrator) { orc.metrics = m }
}

func WithCooldown(c Cooldown) Option {
	return func(orc *Orchestrator) { orc.cooldown = c }
}

// WithConcurrency sets how many sources are scraped at once. Pages of one source are always sequential.
func WithConcurrency(n int) Option {
	return func(orc *Orchestrator) {
		if n > 0 {
			orc.concurrency = n
		}
	}
}

// WithPageDelay overrides the pause between pages of a source.
func WithPageDelay(source string, d time.Duration) Option {
	return func(orc *Orchestrator) { orc.pageDelays[source] = d }
}

func WithClock(now func() time.Time) Option {
	return func(orc *Orchestrator) { orc.now = now }
}

func New(fetcher Fetcher, adapters []source.Adapter, store jobs.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:     fetcher,
		adapters:    adapters,
		store:       store,
		logger:      zap.NewNop(),
		concurrency: 1,
		pageDelays:  make(map[string]time.Duration, len(DefaultPageDelays)),
		now:         time.Now,
		newID:       uuid.NewString,
		active:      make(map[string]context.CancelFunc),
	}
	for name, d := range DefaultPageDelays {
		o.pageDelays[name] = d
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Cancel stops a running session at its next page or retry checkpoint.
func (o *Orchestrator) Cancel(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	cancel, ok := o.active[sessionID]
	if ok {
		cancel()
	}
	return ok
}

// CancelActive cancels every running session and returns their ids.
func (o *Orchestrator) CancelActive() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.active))
	for id, cancel := range o.active {
		cancel()
		ids = append(ids, id)
	}
	return ids
}

// Active returns the ids of running sessions.
func (o *Orchestrator) Active() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// Run scrapes every source for keywords and stores the jobs found.
// It returns a *RunError only when no source produced a job and something failed,
// and ErrCancelled when the session was cancelled. The Result is returned in all cases.
func (o *Orchestrator) Run(ctx context.Context, keywords []string, location string, maxPages int) (*Result, error) {
	started := o.now()
	session := jobs.NewSession(o.newID(), keywords, location, started)
	log := logger.WithFields(o.logger, zap.String(logger.FieldSession, session.ID))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.register(session.ID, cancel)
	defer o.unregister(session.ID)

	// Bookkeeping must survive cancellation of the run.
	storeCtx := context.WithoutCancel(ctx)

	if err := o.store.CreateSession(storeCtx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	ev := &emitter{observers: o.observers, sessionID: session.ID, now: o.now}
	ev.emit(Event{Type: EventStarted})
	log.Info("scrape started",
		zap.Strings("keywords", keywords),
		zap.String("location", location),
		zap.Int("max_pages", maxPages),
		zap.Int("sources", len(o.adapters)),
	)

	outcomes := make([]SourceOutcome, len(o.adapters))
	found := make([][]*jobs.Job, len(o.adapters))
	var sessionMu sync.Mutex

	// progress writes the running session so readers see errors and counts as they happen.
	// Callers hold sessionMu.
	progress := func() {
		if err := o.store.UpdateSession(storeCtx, session.Clone()); err != nil {
			log.Warn("updating session progress", zap.Error(err))
		}
	}

	record := func(e *fetch.Error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()
		session.AddError(e.UserMessage(), map[string]string{
			"site": e.Source,
			"type": string(e.Kind),
		}, o.now())
		progress()
	}

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)
	for i, adapter := range o.adapters {
		g.Go(func() error {
			outcomes[i], found[i] = o.scrapeSource(runCtx, adapter, keywords, location, maxPages, ev, record, log)

			sessionMu.Lock()
			session.JobsFound += len(found[i])
			progress()
			sessionMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Session: session, Outcomes: outcomes, Jobs: []*jobs.Job{}}
	for i := range o.adapters {
		res.Jobs = append(res.Jobs, found[i]...)
		res.Errors = append(res.Errors, outcomes[i].Errors...)
	}
	res.TotalFound = len(res.Jobs)

	if len(res.Jobs) > 0 {
		ev.emit(Event{Type: EventSaving, TotalJobs: len(res.Jobs)})
		res.TotalSaved = o.save(storeCtx, res, record, log)
	}

	switch {
	case runCtx.Err() != nil:
		session.JobsFound, session.JobsSaved = res.TotalFound, res.TotalSaved
		session.Cancel(o.now())
		o.finish(storeCtx, session, log)
		ev.emit(Event{Type: EventFailed, Error: ErrCancelled.Error()})
		log.Warn("scrape cancelled", zap.Int("jobs_found", res.TotalFound))
		return res, ErrCancelled

	case len(res.Jobs) == 0 && len(res.Errors) > 0:
		runErr := &RunError{Errors: res.Errors}
		session.JobsFound, session.JobsSaved = 0, 0
		session.Fail("", o.now())
		o.finish(storeCtx, session, log)
		ev.emit(Event{Type: EventFailed, Error: runErr.Error()})
		log.Error("scrape failed", zap.Error(runErr))
		return res, runErr
	}

	session.Complete(res.TotalFound, res.TotalSaved, o.now())
	o.finish(storeCtx, session, log)
	ev.emit(Event{Type: EventCompleted, JobsFound: res.TotalFound, JobsSaved: res.TotalSaved})

	if res.TotalFound == 0 {
		log.Info("scrape finished, nothing found")
	} else {
		log.Info("scrape finished", zap.String("summary", res.Summary()), zap.Int("errors", len(res.Errors)))
	}
	return res, nil
}

func (o *Orchestrator) scrapeSource(
	ctx context.Context,
	adapter source.Adapter,
	keywords []string,
	location string,
	maxPages int,
	ev *emitter,
	record func(*fetch.Error),
	runLog *zap.Logger,
) (SourceOutcome, []*jobs.Job) {
	name := adapter.Name()
	log := runLog.With(zap.String(logger.FieldSource, name))
	outcome := SourceOutcome{Source: name, Status: SiteCompleted}
	collected := make([]*jobs.Job, 0)

	fail := func(e *fetch.Error) {
		outcome.Errors = append(outcome.Errors, e)
		record(e)
	}

	if o.cooldown != nil {
		left, err := o.cooldown.Remaining(ctx, name)
		if err != nil {
			log.Warn("cooldown lookup failed", zap.Error(err))
		} else if left > 0 {
			log.Info("source is cooling down, skipping", zap.Duration("remaining", left))
			outcome.Status = SiteSkipped
			ev.emit(Event{Type: EventScrapingSite, Site: name, Status: SiteSkipped})
			return outcome, collected
		}
	}

	ev.emit(Event{Type: EventScrapingSite, Site: name, Status: SiteStarting})

pages:
	for page := 0; page < maxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		if page > 0 {
			if err := wait(ctx, o.pageDelay(name)); err != nil {
				break
			}
		}

		url := adapter.SearchURL(keywords, location, page)
		payload, err := o.fetcher.Fetch(ctx, url, name)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				break
			}
			ferr, ok := fetch.AsError(err)
			if !ok {
				ferr = &fetch.Error{Kind: fetch.KindGeneric, Source: name, URL: url, Message: "fetch failed", Cause: err}
			}
			fail(ferr)

			if ferr.StopsSource() {
				outcome.Status = SiteBlocked
				if ferr.Kind == fetch.KindRateLimit {
					outcome.Status = SiteRateLimited
					o.markCooldown(name, ferr.RetryAfter, log)
				}
				log.Warn("source stopped", zap.Int("page", page), zap.String(logger.FieldKind, string(ferr.Kind)))
				break pages
			}
			log.Warn("page failed, continuing", zap.Int("page", page), zap.Error(ferr))
			continue
		}

		outcome.Pages++
		parsed, skipped := adapter.Parse(payload.Body, url)
		outcome.Skipped += skipped
		collected = append(collected, parsed...)
		o.metrics.AddJobsScraped(name, len(parsed))

		log.Debug("page parsed", zap.Int("page", page), zap.Int("jobs", len(parsed)), zap.Int("skipped", skipped))

		if len(parsed) == 0 && skipped > 0 {
			fail(&fetch.Error{
				Kind:    fetch.KindParsing,
				Source:  name,
				URL:     url,
				Message: fmt.Sprintf("all %d records on page %d were malformed", skipped, page),
			})
		}
		if len(parsed) == 0 && page == 0 {
			log.Warn("first page has no results, the page layout may have changed", zap.String(logger.FieldURL, url))
		}
		if len(parsed) < adapter.PageSize() {
			break
		}
	}

	outcome.JobsFound = len(collected)
	if outcome.Status == SiteCompleted && len(outcome.Errors) > 0 && len(collected) == 0 {
		outcome.Status = SiteFailed
	}

	done := Event{Type: EventScrapingSite, Site: name, Status: outcome.Status, JobsFound: outcome.JobsFound}
	if n := len(outcome.Errors); n > 0 {
		done.Error = outcome.Errors[n-1].UserMessage()
	}
	ev.emit(done)

	return outcome, collected
}

// save upserts every job. Failures are recorded and do not stop the others.
func (o *Orchestrator) save(ctx context.Context, res *Result, record func(*fetch.Error), log *zap.Logger) int {
	saved := 0
	for _, job := range res.Jobs {
		up, err := o.store.UpsertJob(ctx, job)
		if err != nil {
			e := &fetch.Error{
				Kind:    fetch.KindGeneric,
				Source:  job.SourceSite,
				URL:     job.SourceURL,
				Message: "saving job failed",
				Cause:   err,
			}
			res.Errors = append(res.Errors, e)
			record(e)
			log.Error("saving job", zap.String(logger.FieldURL, job.SourceURL), zap.Error(err))
			continue
		}
		if up.Created {
			saved++
		}
	}
	o.metrics.AddJobsSaved(saved)
	return saved
}

func (o *Orchestrator) finish(ctx context.Context, session *jobs.Session, log *zap.Logger) {
	if err := o.store.UpdateSession(ctx, session); err != nil {
		log.Error("updating session", zap.Error(err))
	}
	o.metrics.ObserveRun(string(session.Status), session.Duration())
}

func (o *Orchestrator) markCooldown(name string, ttl time.Duration, log *zap.Logger) {
	if o.cooldown == nil {
		return
	}
	if err := o.cooldown.Mark(context.Background(), name, ttl); err != nil {
		log.Warn("cooldown update failed", zap.Error(err))
	}
}

func (o *Orchestrator) pageDelay(name string) time.Duration {
	if d, ok := o.pageDelays[name]; ok {
		return d
	}
	return defaultPageDelay
}

func (o *Orchestrator) register(id string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[id] = cancel
}

func (o *Orchestrator) unregister(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, id)
}
