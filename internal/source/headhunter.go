package source

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/jobscout/internal/jobs"
	"go.uber.org/zap"
)

const (
	HeadHunterName     = "headhunter"
	headHunterAPIURL   = "https://api.hh.ru"
	headHunterPageSize = 20
	vacanciesPath      = "/vacancies"
)

var highlightTags = regexp.MustCompile(`</?highlighttext>`)

// itemResponse is the paginated envelope of the hh.ru api.
type itemResponse struct {
	Items   []map[string]any `json:"items"`
	Found   int              `json:"found"`
	Pages   int              `json:"pages"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

type vacancy struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AlternateURL string `json:"alternate_url"`
	ApplyURL     string `json:"apply_alternate_url"`
	Area         struct {
		Name string `json:"name"`
	} `json:"area"`
	Employer struct {
		Name string `json:"name"`
	} `json:"employer"`
	Experience struct {
		ID string `json:"id"`
	} `json:"experience"`
	Schedule struct {
		ID string `json:"id"`
	} `json:"schedule"`
	Snippet struct {
		Requirement    string `json:"requirement"`
		Responsibility string `json:"responsibility"`
	} `json:"snippet"`
	KeySkills []struct {
		Name string `json:"name"`
	} `json:"key_skills"`
}

var headHunterExperience = map[string]jobs.ExperienceLevel{
	"noExperience": jobs.ExperienceJunior,
	"between1And3": jobs.ExperienceMid,
	"between3And6": jobs.ExperienceSenior,
	"moreThan6":    jobs.ExperienceLead,
}

var headHunterSchedule = map[string]jobs.RemoteType{
	"remote":   jobs.RemoteTypeRemote,
	"flexible": jobs.RemoteTypeHybrid,
	"fullDay":  jobs.RemoteTypeOnsite,
	"shift":    jobs.RemoteTypeOnsite,
}

// HeadHunter reads the public vacancy search api of hh.ru.
type HeadHunter struct {
	apiURL string
	logger *zap.Logger
	now    func() time.Time
}

func NewHeadHunter(logger *zap.Logger, opts ...HTMLOption) *HeadHunter {
	o := applyHTMLOptions(headHunterAPIURL, logger, opts)
	return &HeadHunter{apiURL: o.baseURL, logger: o.logger, now: o.now}
}

func (h *HeadHunter) Name() string { return HeadHunterName }

func (h *HeadHunter) PageSize() int { return headHunterPageSize }

// SearchURL treats a numeric location as an hh.ru area id, any other location is added to the text query.
func (h *HeadHunter) SearchURL(keywords []string, location string, page int) string {
	q := url.Values{}
	text := strings.Join(keywords, " ")

	location = strings.TrimSpace(location)
	if _, err := strconv.Atoi(location); err == nil {
		q.Set("area", location)
	} else if location != "" {
		text = strings.TrimSpace(text + " " + location)
	}

	q.Set("text", text)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(headHunterPageSize))
	q.Set("order_by", "publication_time")

	return fmt.Sprintf("%s%s?%s", h.apiURL, vacanciesPath, q.Encode())
}

func (h *HeadHunter) Parse(payload []byte, sourceURL string) ([]*jobs.Job, int) {
	var response itemResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		h.logger.Warn("unreadable api response", zap.String("url", sourceURL), zap.Error(err))
		return []*jobs.Job{}, 1
	}

	h.logger.Debug("got response from hh.ru",
		zap.Int("found", response.Found),
		zap.Int("pages", response.Pages),
		zap.Int("page", response.Page),
	)

	now := h.now()
	found := make([]*jobs.Job, 0, len(response.Items))
	skipped := 0

	for idx, item := range response.Items {
		job, err := h.decode(item, now)
		if err != nil {
			skipped++
			h.logger.Debug("skipping vacancy", zap.Int("index", idx), zap.String("url", sourceURL), zap.Error(err))
			continue
		}
		found = append(found, job)
	}

	return found, skipped
}

func (h *HeadHunter) decode(item map[string]any, now time.Time) (*jobs.Job, error) {
	var v vacancy

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &v,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(item); err != nil {
		return nil, fmt.Errorf("decode vacancy: %w", err)
	}

	skills := make([]string, 0, len(v.KeySkills))
	for _, s := range v.KeySkills {
		skills = append(skills, s.Name)
	}

	d := draft{
		title:          v.Name,
		company:        v.Employer.Name,
		location:       v.Area.Name,
		description:    cleanSnippet(v.Snippet.Requirement, v.Snippet.Responsibility),
		sourceURL:      v.AlternateURL,
		applicationURL: v.ApplyURL,
		extraTech:      skills,
	}
	if d.sourceURL == "" && v.ID != "" {
		d.sourceURL = "https://hh.ru/vacancy/" + v.ID
	}
	if err := d.valid(); err != nil {
		return nil, err
	}

	job := d.normalize(HeadHunterName, now)

	if remote, ok := headHunterSchedule[v.Schedule.ID]; ok {
		job.RemoteType = remote
	}
	if level, ok := headHunterExperience[v.Experience.ID]; ok {
		job.ExperienceLevel = level
	} else if job.ExperienceLevel == "" {
		job.ExperienceLevel = ExperienceOrDefault(job.Title + " " + job.Description)
	}

	return job, nil
}

func cleanSnippet(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(highlightTags.ReplaceAllString(p, ""))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, " ")
}
