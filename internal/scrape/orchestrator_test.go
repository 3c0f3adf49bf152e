package scrape

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/spigell/jobscout/internal/fetch"
	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/source"
	"github.com/spigell/jobscout/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	wait = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	os.Exit(m.Run())
}

type stubAdapter struct {
	name string
	size int
}

func (a stubAdapter) Name() string  { return a.name }
func (a stubAdapter) PageSize() int { return a.size }

func (a stubAdapter) SearchURL(_ []string, _ string, page int) string {
	return pageURL(a.name, page)
}

// Parse reads the body as the number of jobs on the page. "bad" means two malformed records.
func (a stubAdapter) Parse(body []byte, url string) ([]*jobs.Job, int) {
	if string(body) == "bad" {
		return []*jobs.Job{}, 2
	}
	n, _ := strconv.Atoi(string(body))
	out := make([]*jobs.Job, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &jobs.Job{
			Title:      fmt.Sprintf("job %d", i),
			Company:    "Acme",
			SourceURL:  fmt.Sprintf("%s#%d", url, i),
			SourceSite: a.name,
			ScrapedAt:  testNow,
		})
	}
	return out, 0
}

func pageURL(name string, page int) string {
	return fmt.Sprintf("https://%s.test/search?page=%d", name, page)
}

type response struct {
	body string
	err  error
}

type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []string
	onFetch   func(url string)
}

func (f *stubFetcher) Fetch(_ context.Context, url, src string) (*fetch.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	r, ok := f.responses[url]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if !ok {
		return nil, &fetch.Error{Kind: fetch.KindSiteUnavailable, Source: src, URL: url, Message: "status 503"}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &fetch.Payload{URL: url, Source: src, Body: []byte(r.body)}, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) summary() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		s := string(e.Type)
		if e.Site != "" {
			s += ":" + e.Site + ":" + string(e.Status)
		}
		out = append(out, s)
	}
	return out
}

func blocked(src string) error {
	return &fetch.Error{Kind: fetch.KindBlocked, Source: src, Message: "status 403", StatusCode: 403}
}

// twoSources is source "alpha" with 10 then 3 jobs, and "beta" blocked on its first page.
func twoSources() (*stubFetcher, []source.Adapter) {
	f := &stubFetcher{responses: map[string]response{
		pageURL("alpha", 0): {body: "10"},
		pageURL("alpha", 1): {body: "3"},
		pageURL("alpha", 2): {body: "10"},
		pageURL("beta", 0):  {err: blocked("beta")},
		pageURL("beta", 1):  {body: "10"},
	}}
	return f, []source.Adapter{stubAdapter{name: "alpha", size: 10}, stubAdapter{name: "beta", size: 10}}
}

func TestRunPartialFailureCompletes(t *testing.T) {
	ctx := context.Background()
	f, adapters := twoSources()
	store := storage.NewMemory()
	rec := &recorder{}

	orc := New(f, adapters, store, WithObserver(rec), WithClock(func() time.Time { return testNow }))
	res, err := orc.Run(ctx, []string{"go"}, "Lisbon", 5)
	require.NoError(t, err)

	assert.Equal(t, 13, res.TotalFound)
	assert.Equal(t, 13, res.TotalSaved)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, fetch.KindBlocked, res.Errors[0].Kind)
	assert.Equal(t, 3, f.callCount())

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, SourceOutcome{Source: "alpha", Status: SiteCompleted, Pages: 2, JobsFound: 13}, res.Outcomes[0])
	assert.Equal(t, SiteBlocked, res.Outcomes[1].Status)
	assert.Equal(t, []string{"alpha"}, res.SuccessfulSources())
	assert.Equal(t, []string{"beta"}, res.FailedSources())
	assert.Equal(t, "Found 13 jobs, saved 13 new jobs; successful sites: alpha; failed sites: beta", res.Summary())

	sess, err := store.GetSession(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.SessionCompleted, sess.Status)
	assert.Equal(t, 13, sess.JobsFound)
	assert.Equal(t, 13, sess.JobsSaved)
	require.Len(t, sess.Errors, 1)
	assert.Equal(t, "beta", sess.Errors[0].Details["site"])
	assert.Equal(t, "blocked", sess.Errors[0].Details["type"])

	assert.Equal(t, []string{
		"started",
		"scraping_site:alpha:starting",
		"scraping_site:alpha:completed",
		"scraping_site:beta:starting",
		"scraping_site:beta:blocked",
		"saving",
		"completed",
	}, rec.summary())
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f, adapters := twoSources()
	store := storage.NewMemory()
	orc := New(f, adapters, store)

	_, err := orc.Run(ctx, []string{"go"}, "", 5)
	require.NoError(t, err)

	again, err := orc.Run(ctx, []string{"go"}, "", 5)
	require.NoError(t, err)
	assert.Equal(t, 13, again.TotalFound)
	assert.Zero(t, again.TotalSaved)

	_, count, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, count)
}

func TestRunHardFailure(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{responses: map[string]response{
		pageURL("beta", 0): {err: blocked("beta")},
	}}
	adapters := []source.Adapter{stubAdapter{name: "alpha", size: 10}, stubAdapter{name: "beta", size: 10}}
	store := storage.NewMemory()
	rec := &recorder{}

	res, err := New(f, adapters, store, WithObserver(rec)).Run(ctx, []string{"go"}, "", 2)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Len(t, runErr.Errors, 3)
	assert.Contains(t, err.Error(), "alpha is currently unavailable")
	assert.Contains(t, err.Error(), "Access to beta has been temporarily blocked")
	assert.Equal(t, fetch.KindSiteUnavailable, fetch.KindOf(err))

	require.NotNil(t, res)
	assert.Zero(t, res.TotalFound)
	assert.Equal(t, SiteFailed, res.Outcomes[0].Status)

	sess, err := store.GetSession(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.SessionFailed, sess.Status)
	assert.Len(t, sess.Errors, 3)

	events := rec.summary()
	assert.Equal(t, "failed", events[len(events)-1])
	assert.NotContains(t, events, "saving")
}

func TestRunNothingFoundIsNotAnError(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{responses: map[string]response{pageURL("alpha", 0): {body: "0"}}}
	store := storage.NewMemory()

	res, err := New(f, []source.Adapter{stubAdapter{name: "alpha", size: 10}}, store).Run(ctx, []string{"cobol"}, "", 3)
	require.NoError(t, err)
	assert.Zero(t, res.TotalFound)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, jobs.SessionCompleted, res.Session.Status)
	assert.Equal(t, "Found 0 jobs; successful sites: alpha", res.Summary())
}

func TestRunMalformedPageIsParsingError(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{responses: map[string]response{
		pageURL("alpha", 0): {body: "bad"},
		pageURL("beta", 0):  {body: "4"},
	}}
	adapters := []source.Adapter{stubAdapter{name: "alpha", size: 10}, stubAdapter{name: "beta", size: 10}}

	res, err := New(f, adapters, storage.NewMemory()).Run(ctx, []string{"go"}, "", 3)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, fetch.KindParsing, res.Errors[0].Kind)
	assert.Equal(t, 2, res.Outcomes[0].Skipped)
	assert.Equal(t, SiteFailed, res.Outcomes[0].Status)
	assert.Equal(t, 4, res.TotalFound)
}

func TestRunContinuesAfterTransientPageError(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{responses: map[string]response{
		pageURL("alpha", 1): {body: "10"},
		pageURL("alpha", 2): {body: "2"},
	}}

	res, err := New(f, []source.Adapter{stubAdapter{name: "alpha", size: 10}}, storage.NewMemory()).Run(ctx, []string{"go"}, "", 5)
	require.NoError(t, err)
	assert.Equal(t, 12, res.TotalFound)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, fetch.KindSiteUnavailable, res.Errors[0].Kind)
	assert.Equal(t, SiteCompleted, res.Outcomes[0].Status)
	assert.Equal(t, 3, f.callCount())
}

func TestRunRateLimitCoolsSourceDown(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{responses: map[string]response{
		pageURL("alpha", 0): {err: &fetch.Error{Kind: fetch.KindRateLimit, Source: "alpha", RetryAfter: 2 * time.Minute}},
		pageURL("beta", 0):  {body: "1"},
	}}
	adapters := []source.Adapter{stubAdapter{name: "alpha", size: 10}, stubAdapter{name: "beta", size: 10}}
	cooldown := storage.NewMemoryCooldown()
	orc := New(f, adapters, storage.NewMemory(), WithCooldown(cooldown))

	first, err := orc.Run(ctx, []string{"go"}, "", 3)
	require.NoError(t, err)
	assert.Equal(t, SiteRateLimited, first.Outcomes[0].Status)
	assert.Contains(t, first.Session.Errors[0].Message, "Please wait 120 seconds")

	left, err := cooldown.Remaining(ctx, "alpha")
	require.NoError(t, err)
	assert.Greater(t, left, time.Minute)

	rec := &recorder{}
	orc = New(f, adapters, storage.NewMemory(), WithCooldown(cooldown), WithObserver(rec))
	second, err := orc.Run(ctx, []string{"go"}, "", 3)
	require.NoError(t, err)
	assert.Equal(t, SiteSkipped, second.Outcomes[0].Status)
	assert.Empty(t, second.Errors)
	assert.Equal(t, 3, f.callCount())

	events := rec.summary()
	assert.Contains(t, events, "scraping_site:alpha:skipped")
	assert.NotContains(t, events, "scraping_site:alpha:starting")
	assert.Contains(t, events, "scraping_site:beta:starting")
}

func TestRunCancel(t *testing.T) {
	ctx := context.Background()
	f, adapters := twoSources()
	store := storage.NewMemory()
	orc := New(f, adapters, store)

	f.onFetch = func(url string) {
		if url == pageURL("alpha", 0) {
			assert.Len(t, orc.Active(), 1)
			assert.Len(t, orc.CancelActive(), 1)
		}
	}

	res, err := orc.Run(ctx, []string{"go"}, "", 5)
	require.ErrorIs(t, err, ErrCancelled)

	// The in-flight page completes, nothing after it is fetched.
	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, 10, res.TotalFound)
	assert.Equal(t, jobs.SessionCancelled, res.Session.Status)
	assert.Empty(t, orc.Active())

	sess, err := store.GetSession(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.SessionCancelled, sess.Status)
	assert.Equal(t, 10, sess.JobsSaved)

	assert.False(t, orc.Cancel("unknown"))
}

func TestRunConcurrentSourcesKeepOrder(t *testing.T) {
	ctx := context.Background()
	f, adapters := twoSources()
	adapters = append(adapters, stubAdapter{name: "gamma", size: 10})
	f.responses[pageURL("gamma", 0)] = response{body: "5"}

	res, err := New(f, adapters, storage.NewMemory(), WithConcurrency(3)).Run(ctx, []string{"go"}, "", 5)
	require.NoError(t, err)
	assert.Equal(t, 18, res.TotalFound)

	names := make([]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		names = append(names, o.Source)
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)
	assert.Equal(t, "https://alpha.test/search?page=0#0", res.Jobs[0].SourceURL)
}

type failingStore struct {
	*storage.Memory
	failURL string
}

func (s failingStore) UpsertJob(ctx context.Context, job *jobs.Job) (jobs.UpsertResult, error) {
	if job.SourceURL == s.failURL {
		return jobs.UpsertResult{}, errors.New("disk full")
	}
	return s.Memory.UpsertJob(ctx, job)
}

func TestRunPersistenceFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{responses: map[string]response{pageURL("alpha", 0): {body: "3"}}}
	store := failingStore{Memory: storage.NewMemory(), failURL: pageURL("alpha", 0) + "#1"}

	res, err := New(f, []source.Adapter{stubAdapter{name: "alpha", size: 10}}, store).Run(ctx, []string{"go"}, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalFound)
	assert.Equal(t, 2, res.TotalSaved)
	require.Len(t, res.Errors, 1)
	assert.ErrorContains(t, res.Errors[0], "disk full")
	assert.Equal(t, jobs.SessionCompleted, res.Session.Status)
	assert.Len(t, res.Session.Errors, 1)
}

func TestRunPersistsProgressWhileRunning(t *testing.T) {
	ctx := context.Background()
	f, adapters := twoSources()
	store := storage.NewMemory()

	var seen *jobs.Session
	f.onFetch = func(url string) {
		if url != pageURL("alpha", 0) {
			return
		}
		list, err := store.ListSessions(ctx, 1)
		if err == nil && len(list) == 1 {
			seen = list[0]
		}
	}

	// beta runs first and is blocked before alpha fetches anything.
	o := New(f, []source.Adapter{adapters[1], adapters[0]}, store, WithConcurrency(1))
	res, err := o.Run(ctx, []string{"go"}, "", 3)
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, jobs.SessionRunning, seen.Status)
	require.Len(t, seen.Errors, 1)
	assert.Equal(t, "beta", seen.Errors[0].Details["site"])
	assert.Equal(t, 0, seen.JobsFound)

	stored, err := store.GetSession(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.SessionCompleted, stored.Status)
	assert.Equal(t, 13, stored.JobsFound)
	assert.Len(t, stored.Errors, 1)
}

func TestRunPersistsFoundCountPerSource(t *testing.T) {
	ctx := context.Background()
	f, adapters := twoSources()
	f.responses[pageURL("beta", 0)] = response{body: "4"}
	store := storage.NewMemory()

	var seen *jobs.Session
	f.onFetch = func(url string) {
		if url != pageURL("beta", 0) {
			return
		}
		if list, err := store.ListSessions(ctx, 1); err == nil && len(list) == 1 {
			seen = list[0]
		}
	}

	_, err := New(f, adapters, store, WithConcurrency(1)).Run(ctx, []string{"go"}, "", 3)
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, 13, seen.JobsFound)
	assert.Equal(t, jobs.SessionRunning, seen.Status)
}
