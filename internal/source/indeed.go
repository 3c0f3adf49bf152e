package source

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spigell/jobscout/internal/jobs"
	"go.uber.org/zap"
)

const (
	IndeedName     = "indeed"
	indeedBaseURL  = "https://www.indeed.com"
	indeedPageSize = 10
)

// Indeed parses the html search results of indeed.com.
type Indeed struct {
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

func NewIndeed(logger *zap.Logger, opts ...HTMLOption) *Indeed {
	o := applyHTMLOptions(indeedBaseURL, logger, opts)
	return &Indeed{baseURL: o.baseURL, logger: o.logger, now: o.now}
}

func (i *Indeed) Name() string { return IndeedName }

func (i *Indeed) PageSize() int { return indeedPageSize }

func (i *Indeed) SearchURL(keywords []string, location string, page int) string {
	q := url.Values{}
	q.Set("q", strings.Join(keywords, " "))
	if location = strings.TrimSpace(location); location != "" {
		q.Set("l", location)
	}
	q.Set("start", strconv.Itoa(page*indeedPageSize))
	q.Set("sort", "date")

	return fmt.Sprintf("%s/jobs?%s", i.baseURL, q.Encode())
}

func (i *Indeed) Parse(payload []byte, sourceURL string) ([]*jobs.Job, int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		i.logger.Warn("unreadable page", zap.String("url", sourceURL), zap.Error(err))
		return []*jobs.Job{}, 0
	}

	now := i.now()
	found := make([]*jobs.Job, 0)
	skipped := 0

	doc.Find("div[data-jk]").Each(func(idx int, card *goquery.Selection) {
		d := draft{
			title:       text(card.Find("h2.jobTitle")),
			company:     text(card.Find(`span[data-testid="company-name"]`)),
			location:    text(card.Find(`div[data-testid="job-location"]`)),
			description: text(card.Find(`div[data-testid="job-snippet"]`)),
			remoteHint:  text(card.Find(`div[data-testid="attribute_snippet_testid"]`)),
		}

		if href, ok := card.Find("h2.jobTitle a").Attr("href"); ok {
			d.sourceURL = resolve(i.baseURL, href)
		} else if jk, _ := card.Attr("data-jk"); jk != "" {
			d.sourceURL = fmt.Sprintf("%s/viewjob?jk=%s", i.baseURL, url.QueryEscape(jk))
		}

		if err := d.valid(); err != nil {
			skipped++
			i.logger.Debug("skipping job card", zap.Int("index", idx), zap.String("url", sourceURL), zap.Error(err))
			return
		}

		found = append(found, d.normalize(IndeedName, now))
	})

	return found, skipped
}
