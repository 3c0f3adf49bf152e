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
	LinkedInName     = "linkedin"
	linkedInBaseURL  = "https://www.linkedin.com"
	linkedInPageSize = 25
)

// LinkedIn parses the public (guest) job search results of linkedin.com.
type LinkedIn struct {
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

func NewLinkedIn(logger *zap.Logger, opts ...HTMLOption) *LinkedIn {
	o := applyHTMLOptions(linkedInBaseURL, logger, opts)
	return &LinkedIn{baseURL: o.baseURL, logger: o.logger, now: o.now}
}

func (l *LinkedIn) Name() string { return LinkedInName }

func (l *LinkedIn) PageSize() int { return linkedInPageSize }

func (l *LinkedIn) SearchURL(keywords []string, location string, page int) string {
	q := url.Values{}
	q.Set("keywords", strings.Join(keywords, " "))
	if location = strings.TrimSpace(location); location != "" {
		q.Set("location", location)
	}
	q.Set("start", strconv.Itoa(page*linkedInPageSize))
	q.Set("sortBy", "DD")

	return fmt.Sprintf("%s/jobs/search?%s", l.baseURL, q.Encode())
}

func (l *LinkedIn) Parse(payload []byte, sourceURL string) ([]*jobs.Job, int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		l.logger.Warn("unreadable page", zap.String("url", sourceURL), zap.Error(err))
		return []*jobs.Job{}, 0
	}

	now := l.now()
	found := make([]*jobs.Job, 0)
	skipped := 0

	doc.Find("div[data-entity-urn]").Each(func(idx int, card *goquery.Selection) {
		d := draft{
			title:       text(card.Find("h3.base-search-card__title")),
			company:     text(card.Find("h4.base-search-card__subtitle")),
			location:    text(card.Find("span.job-search-card__location")),
			description: text(card.Find("p.job-search-card__snippet")),
			remoteHint:  text(card.Find("span.job-search-card__workplace-type")),
		}

		link := card.Find(`a[data-tracking-control-name="public_jobs_jserp-result_search-card"]`)
		if link.Length() == 0 {
			link = card.Find("a.base-card__full-link")
		}
		if href, ok := link.Attr("href"); ok {
			d.sourceURL = stripQuery(resolve(l.baseURL, href))
		} else if urn, _ := card.Attr("data-entity-urn"); urn != "" {
			if id := urn[strings.LastIndex(urn, ":")+1:]; id != "" {
				d.sourceURL = fmt.Sprintf("%s/jobs/view/%s", l.baseURL, id)
			}
		}

		if err := d.valid(); err != nil {
			skipped++
			l.logger.Debug("skipping job card", zap.Int("index", idx), zap.String("url", sourceURL), zap.Error(err))
			return
		}

		found = append(found, d.normalize(LinkedInName, now))
	})

	return found, skipped
}
