package source

import (
	"testing"
	"time"

	"github.com/spigell/jobscout/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

const indeedPage = `<html><body>
<div class="job_seen_beacon" data-jk="abc123">
  <h2 class="jobTitle"><a href="/rc/clk?jk=abc123">Senior Go Developer</a></h2>
  <span data-testid="company-name">Acme Corp</span>
  <div data-testid="job-location">Remote</div>
  <div data-testid="job-snippet">Build services with Go, Docker and Kubernetes.</div>
</div>
<div class="job_seen_beacon" data-jk="def456">
  <h2 class="jobTitle"><span>Junior Python   Engineer</span></h2>
  <span data-testid="company-name">Globex</span>
  <div data-testid="job-location">Lisbon</div>
  <div data-testid="job-snippet">Hybrid team working on Django.</div>
</div>
<div class="job_seen_beacon" data-jk="ghi789">
  <h2 class="jobTitle"><a href="/rc/clk?jk=ghi789">Data Engineer</a></h2>
  <div data-testid="job-location">Porto</div>
</div>
</body></html>`

const linkedInPage = `<ul class="jobs-search__results-list">
<li><div class="base-card" data-entity-urn="urn:li:jobPosting:111">
  <a class="base-card__full-link" href="https://www.linkedin.com/jobs/view/backend-engineer-111?refId=xyz&amp;trackingId=abc">view</a>
  <h3 class="base-search-card__title">Backend Engineer (Golang)</h3>
  <h4 class="base-search-card__subtitle"><a>Initech</a></h4>
  <span class="job-search-card__location">Berlin, Germany</span>
</div></li>
<li><div class="base-card" data-entity-urn="urn:li:jobPosting:222">
  <h3 class="base-search-card__title">Tech Lead</h3>
  <h4 class="base-search-card__subtitle">Hooli</h4>
  <span class="job-search-card__location">Remote</span>
</div></li>
<li><div class="base-card" data-entity-urn="urn:li:jobPosting:333">
  <h4 class="base-search-card__subtitle">Nameless Inc</h4>
</div></li>
</ul>`

const headHunterPage = `{
  "found": 3, "pages": 1, "page": 0, "per_page": 20,
  "items": [
    {
      "id": "1001",
      "name": "Go Developer",
      "alternate_url": "https://hh.ru/vacancy/1001",
      "apply_alternate_url": "https://hh.ru/applicant/vacancy_response?vacancyId=1001",
      "area": {"name": "Moscow"},
      "employer": {"name": "Acme"},
      "experience": {"id": "between3And6"},
      "schedule": {"id": "remote"},
      "snippet": {"requirement": "Strong <highlighttext>Go</highlighttext> skills", "responsibility": "Build services"},
      "key_skills": [{"name": "Kafka"}]
    },
    {
      "id": "1002",
      "name": "Python Intern",
      "area": {"name": "Kazan"},
      "employer": {"name": "Globex"},
      "experience": {"id": "unknown"},
      "schedule": {"id": "flexible"},
      "snippet": {"requirement": null, "responsibility": "Write scripts"}
    },
    {
      "id": "1003",
      "name": "Broken",
      "employer": "oops"
    }
  ]
}`

func TestIndeedParse(t *testing.T) {
	t.Parallel()

	adapter := NewIndeed(nil, WithClock(clock))
	found, skipped := adapter.Parse([]byte(indeedPage), "https://www.indeed.com/jobs?q=go")

	require.Len(t, found, 2)
	assert.Equal(t, 1, skipped)

	first := found[0]
	assert.Equal(t, "Senior Go Developer", first.Title)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "https://www.indeed.com/rc/clk?jk=abc123", first.SourceURL)
	assert.Equal(t, first.SourceURL, first.ApplicationURL)
	assert.Equal(t, jobs.RemoteTypeRemote, first.RemoteType)
	assert.Equal(t, jobs.ExperienceSenior, first.ExperienceLevel)
	assert.Equal(t, []string{"docker", "kubernetes", "go"}, first.Technologies)
	assert.Equal(t, IndeedName, first.SourceSite)
	assert.Equal(t, fixedNow, first.ScrapedAt)

	second := found[1]
	assert.Equal(t, "Junior Python Engineer", second.Title)
	assert.Equal(t, "https://www.indeed.com/viewjob?jk=def456", second.SourceURL)
	assert.Equal(t, jobs.RemoteTypeHybrid, second.RemoteType)
	assert.Equal(t, jobs.ExperienceJunior, second.ExperienceLevel)
	assert.Equal(t, []string{"python", "django"}, second.Technologies)
}

func TestIndeedParseEmptyPage(t *testing.T) {
	t.Parallel()

	found, skipped := NewIndeed(nil).Parse([]byte(`<html><body><p>No results</p></body></html>`), "u")
	assert.NotNil(t, found)
	assert.Empty(t, found)
	assert.Zero(t, skipped)
}

func TestIndeedSearchURL(t *testing.T) {
	t.Parallel()

	adapter := NewIndeed(nil, WithBaseURL("http://127.0.0.1:8080/"))
	assert.Equal(t,
		"http://127.0.0.1:8080/jobs?l=Lisbon&q=go+developer&sort=date&start=20",
		adapter.SearchURL([]string{"go", "developer"}, "Lisbon", 2),
	)
	assert.Equal(t, 10, adapter.PageSize())
}

func TestLinkedInParse(t *testing.T) {
	t.Parallel()

	adapter := NewLinkedIn(nil, WithClock(clock))
	found, skipped := adapter.Parse([]byte(linkedInPage), "https://www.linkedin.com/jobs/search")

	require.Len(t, found, 2)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, "Backend Engineer (Golang)", found[0].Title)
	assert.Equal(t, "Initech", found[0].Company)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/backend-engineer-111", found[0].SourceURL)
	assert.Empty(t, found[0].RemoteType)
	assert.Equal(t, []string{"golang"}, found[0].Technologies)

	assert.Equal(t, "https://www.linkedin.com/jobs/view/222", found[1].SourceURL)
	assert.Equal(t, jobs.RemoteTypeRemote, found[1].RemoteType)
	assert.Equal(t, jobs.ExperienceLead, found[1].ExperienceLevel)
}

func TestLinkedInSearchURL(t *testing.T) {
	t.Parallel()

	got := NewLinkedIn(nil).SearchURL([]string{"python"}, "", 1)
	assert.Equal(t, "https://www.linkedin.com/jobs/search?keywords=python&sortBy=DD&start=25", got)
}

func TestHeadHunterParse(t *testing.T) {
	t.Parallel()

	adapter := NewHeadHunter(nil, WithClock(clock))
	found, skipped := adapter.Parse([]byte(headHunterPage), "https://api.hh.ru/vacancies")

	require.Len(t, found, 2)
	assert.Equal(t, 1, skipped)

	first := found[0]
	assert.Equal(t, "Go Developer", first.Title)
	assert.Equal(t, "Strong Go skills Build services", first.Description)
	assert.Equal(t, "https://hh.ru/applicant/vacancy_response?vacancyId=1001", first.ApplicationURL)
	assert.Equal(t, jobs.RemoteTypeRemote, first.RemoteType)
	assert.Equal(t, jobs.ExperienceSenior, first.ExperienceLevel)
	assert.Equal(t, []string{"go", "kafka"}, first.Technologies)

	second := found[1]
	assert.Equal(t, "https://hh.ru/vacancy/1002", second.SourceURL)
	assert.Equal(t, second.SourceURL, second.ApplicationURL)
	assert.Equal(t, jobs.RemoteTypeHybrid, second.RemoteType)
	assert.Equal(t, jobs.ExperienceIntern, second.ExperienceLevel)
	assert.Equal(t, []string{"python"}, second.Technologies)
}

func TestHeadHunterParseInvalidJSON(t *testing.T) {
	t.Parallel()

	found, skipped := NewHeadHunter(nil).Parse([]byte(`<html>captcha</html>`), "u")
	assert.Empty(t, found)
	assert.Equal(t, 1, skipped)
}

func TestHeadHunterSearchURL(t *testing.T) {
	t.Parallel()

	adapter := NewHeadHunter(nil)
	assert.Equal(t,
		"https://api.hh.ru/vacancies?area=1&order_by=publication_time&page=0&per_page=20&text=golang",
		adapter.SearchURL([]string{"golang"}, "1", 0),
	)
	assert.Equal(t,
		"https://api.hh.ru/vacancies?order_by=publication_time&page=3&per_page=20&text=golang+Remote",
		adapter.SearchURL([]string{"golang"}, "Remote", 3),
	)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(NewLinkedIn(nil), NewIndeed(nil))
	registry.Register(NewHeadHunter(nil))

	all, err := registry.Select()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, LinkedInName, all[0].Name())
	assert.Equal(t, IndeedName, all[1].Name())
	assert.Equal(t, HeadHunterName, all[2].Name())

	picked, err := registry.Select("indeed", " linkedin")
	require.NoError(t, err)
	assert.Equal(t, IndeedName, picked[0].Name())
	assert.Equal(t, LinkedInName, picked[1].Name())

	_, err = registry.Get("glassdoor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "headhunter, indeed, linkedin")

	assert.Equal(t, []string{"headhunter", "indeed", "linkedin"}, registry.Names())
}
