package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spigell/jobscout/internal/jobs"
	"github.com/spigell/jobscout/internal/matching"
	"github.com/spigell/jobscout/internal/ranking"
	"go.uber.org/zap"
)

const (
	defaultRankLimit     = 20
	defaultSessionsLimit = 20
)

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	Keywords []string `json:"keywords"`
	Location string   `json:"location"`
	MaxPages int      `json:"max_pages"`
}

// RankResponse is the body of GET /api/rank.
type RankResponse struct {
	AlgorithmVersion int               `json:"algorithm_version"`
	Keywords         []string          `json:"keywords"`
	Total            int               `json:"total"`
	Results          []matching.Result `json:"results"`
}

// JobsResponse is the body of GET /api/jobs.
type JobsResponse struct {
	*jobs.Page
	TotalPages int `json:"total_pages"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "storage": "healthy"}
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			s.logger.Error("health check failed for storage", zap.Error(err))
			status["status"] = "degraded"
			status["storage"] = "unhealthy"
			s.respondWithJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	s.respondWithJSON(w, http.StatusOK, status)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.store.ListJobs(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to list jobs", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not list jobs")
		return
	}
	s.respondWithJSON(w, http.StatusOK, JobsResponse{Page: page, TotalPages: page.TotalPages()})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "Job id must be a positive integer")
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get job", zap.Int64("id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve job")
		return
	}
	s.respondWithJSON(w, http.StatusOK, job)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	keywords := splitList(params["keywords"])
	if len(keywords) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "keywords query parameter is required")
		return
	}

	limit, err := intParam(params, "limit", defaultRankLimit)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := parseQuery(params)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.ranker.RankStored(r.Context(), s.store, keywords, q)
	if err != nil {
		s.logger.Error("failed to rank jobs", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not rank jobs")
		return
	}

	total := len(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	s.respondWithJSON(w, http.StatusOK, RankResponse{
		AlgorithmVersion: ranking.AlgorithmVersion,
		Keywords:         matching.NormalizeKeywords(keywords),
		Total:            total,
		Results:          results,
	})
}

func (s *Server) handleFreshness(w http.ResponseWriter, r *http.Request) {
	if s.freshness == nil {
		s.respondWithError(w, http.StatusNotImplemented, "Freshness tracking is not configured")
		return
	}

	should, status, err := s.freshness.ShouldScrape(r.Context())
	if err != nil {
		s.logger.Error("failed to read freshness", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not read freshness")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"should_scrape": should,
		"last_scrape":   status.LastScrape,
		"age_seconds":   int(status.Age.Seconds()),
		"job_count":     status.JobCount,
		"stale":         status.Stale,
		"threshold":     status.Threshold.String(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", defaultSessionsLimit)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not list sessions")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get session", zap.String("id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve session")
		return
	}
	s.respondWithJSON(w, http.StatusOK, session)
}

func (s *Server) handleCancelSessions(w http.ResponseWriter, _ *http.Request) {
	if s.scraper == nil {
		s.respondWithError(w, http.StatusNotImplemented, "Scraping is not configured")
		return
	}
	cancelled := s.scraper.CancelActive()
	s.logger.Info("cancelled active sessions", zap.Strings("sessions", cancelled))
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"cancelled": len(cancelled),
		"sessions":  cancelled,
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Keywords = splitList(req.Keywords)
	if len(req.Keywords) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "Keywords list cannot be empty")
		return
	}
	if req.MaxPages < 0 {
		s.respondWithError(w, http.StatusBadRequest, "max_pages must not be negative")
		return
	}
	if req.MaxPages == 0 {
		req.MaxPages = s.config.DefaultMaxPages
	}
	if s.scraper == nil {
		s.respondWithError(w, http.StatusNotImplemented, "Scraping is not configured")
		return
	}

	if !s.StartScrape(req.Keywords, strings.TrimSpace(req.Location), req.MaxPages) {
		s.respondWithError(w, http.StatusConflict, "A scrape is already running")
		return
	}
	s.respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Scrape started"})
}

// parseQuery maps listing parameters onto a jobs.Query.
func parseQuery(params url.Values) (jobs.Query, error) {
	q := jobs.Query{
		Company:      params.Get("company"),
		Location:     params.Get("location"),
		Search:       params.Get("search"),
		SourceSites:  splitList(params["source"]),
		Technologies: splitList(params["tech"]),
	}

	for _, v := range splitList(params["remote"]) {
		r := jobs.RemoteType(v)
		if !r.Valid() {
			return q, fmt.Errorf("unknown remote type %q", v)
		}
		q.RemoteTypes = append(q.RemoteTypes, r)
	}
	for _, v := range splitList(params["experience"]) {
		e := jobs.ExperienceLevel(v)
		if !e.Valid() {
			return q, fmt.Errorf("unknown experience level %q", v)
		}
		q.ExperienceLevels = append(q.ExperienceLevels, e)
	}

	if sortBy := params.Get("sort"); sortBy != "" {
		switch f := jobs.SortField(sortBy); f {
		case jobs.SortScrapedAt, jobs.SortTitle, jobs.SortCompany:
			q.SortBy = f
		default:
			return q, fmt.Errorf("unknown sort field %q", sortBy)
		}
		q.Desc = params.Get("order") == "desc"
	}

	var err error
	if q.Page, err = intParam(params, "page", 1); err != nil {
		return q, err
	}
	if q.PerPage, err = intParam(params, "per_page", jobs.DefaultPerPage); err != nil {
		return q, err
	}
	return q.Normalize(), nil
}

func intParam(params url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(params.Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

// splitList accepts both repeated parameters and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"Could not encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
