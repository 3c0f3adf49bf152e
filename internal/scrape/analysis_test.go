package scrape

import (
	"context"
	"testing"
	"time"

	"github.com/spigell/jobscout/internal/fetch"
	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		a := AnalyzeErrors(nil)
		assert.Zero(t, a.Total)
		assert.False(t, a.AllTemporary)
		assert.Empty(t, a.Recommendations)
	})

	t.Run("temporary only", func(t *testing.T) {
		a := AnalyzeErrors([]*fetch.Error{
			{Kind: fetch.KindRateLimit, Source: "linkedin"},
			{Kind: fetch.KindTimeout, Source: "indeed"},
			{Kind: fetch.KindTimeout, Source: "indeed"},
		})
		assert.Equal(t, 3, a.Total)
		assert.Equal(t, 2, a.ByKind[fetch.KindTimeout])
		assert.Equal(t, []string{"indeed", "linkedin"}, a.Sources)
		assert.True(t, a.AllTemporary)
		assert.Len(t, a.Recommendations, 3)
		assert.Contains(t, a.Recommendations[0], "rate limiting")
		assert.Contains(t, a.Recommendations[2], "temporary")
	})

	t.Run("blocked is not temporary", func(t *testing.T) {
		a := AnalyzeErrors([]*fetch.Error{
			{Kind: fetch.KindBlocked, Source: "indeed"},
			{Kind: fetch.KindParsing, Source: "headhunter"},
		})
		assert.False(t, a.AllTemporary)
		assert.Equal(t, []string{
			"Some sites blocked access. Try again later or enable identity rotation.",
			"Some result pages could not be read. The site layout may have changed.",
		}, a.Recommendations)
	})
}

func TestFreshness(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

	store := storage.NewMemory()
	f := NewFreshness(store, 0, 2)
	f.now = func() time.Time { return now }

	should, st, err := f.ShouldScrape(ctx)
	require.NoError(t, err)
	assert.True(t, should)
	assert.True(t, st.Stale)
	assert.Nil(t, st.LastScrape)
	assert.Equal(t, DefaultFreshnessThreshold, st.Threshold)

	for i, url := range []string{"https://a.test/1", "https://a.test/2"} {
		_, err := store.UpsertJob(ctx, &jobs.Job{
			Title:      "Go developer",
			Company:    "Acme",
			SourceURL:  url,
			SourceSite: "indeed",
			ScrapedAt:  now.Add(-time.Duration(i+1) * time.Hour),
		})
		require.NoError(t, err)
	}

	should, st, err = f.ShouldScrape(ctx)
	require.NoError(t, err)
	assert.False(t, should)
	assert.False(t, st.Stale)
	assert.Equal(t, 2, st.JobCount)
	assert.Equal(t, time.Hour, st.Age)

	f.now = func() time.Time { return now.Add(48 * time.Hour) }
	should, st, err = f.ShouldScrape(ctx)
	require.NoError(t, err)
	assert.True(t, should)
	assert.True(t, st.Stale)

	tooFew := NewFreshness(store, time.Hour*72, 5)
	tooFew.now = func() time.Time { return now }
	should, st, err = tooFew.ShouldScrape(ctx)
	require.NoError(t, err)
	assert.True(t, should)
	assert.False(t, st.Stale)
}
