package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spigell/jobscout/internal/jobs"
)

//go:embed migrations/postgres.sql
var postgresMigration string

// Postgres is a jobs.Store backed by a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(ctx, postgresMigration); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.db.Close()
	return nil
}

// UpsertJob relies on xmax being zero only for freshly inserted rows.
func (s *Postgres) UpsertJob(ctx context.Context, job *jobs.Job) (jobs.UpsertResult, error) {
	tech, err := encodeJSON(job.Technologies)
	if err != nil {
		return jobs.UpsertResult{}, err
	}

	var res jobs.UpsertResult
	err = s.db.QueryRow(ctx,
		`INSERT INTO jobs (title, company, location, remote_type, experience_level,
			technologies, description, source_url, application_url, source_site, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (source_url) DO UPDATE SET
		   title = EXCLUDED.title, company = EXCLUDED.company, location = EXCLUDED.location,
		   remote_type = EXCLUDED.remote_type, experience_level = EXCLUDED.experience_level,
		   technologies = EXCLUDED.technologies, description = EXCLUDED.description,
		   application_url = EXCLUDED.application_url, source_site = EXCLUDED.source_site,
		   scraped_at = EXCLUDED.scraped_at
		 RETURNING id, (xmax = 0)`,
		job.Title, job.Company, job.Location, string(job.RemoteType), string(job.ExperienceLevel),
		tech, job.Description, job.SourceURL, job.ApplicationURL, job.SourceSite, job.ScrapedAt.UTC(),
	).Scan(&res.ID, &res.Created)
	if err != nil {
		return jobs.UpsertResult{}, fmt.Errorf("upsert job: %w", err)
	}

	job.ID = res.ID
	return res, nil
}

func (s *Postgres) GetJob(ctx context.Context, id int64) (*jobs.Job, error) {
	job, err := scanPostgresJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *Postgres) ListJobs(ctx context.Context, q jobs.Query) (*jobs.Page, error) {
	q = q.Normalize()
	where := buildWhere(postgresDialect, q)

	page := &jobs.Page{Page: q.Page, PerPage: q.PerPage, Jobs: []*jobs.Job{}}
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`+where.String(), where.args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	limit := where.next(q.PerPage)
	offset := where.next(q.Offset())
	query := `SELECT ` + jobColumns + ` FROM jobs` + where.String() + orderBy(q) + ` LIMIT ` + limit + ` OFFSET ` + offset

	rows, err := s.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		job, err := scanPostgresJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		page.Jobs = append(page.Jobs, job)
	}
	return page, rows.Err()
}

func (s *Postgres) Latest(ctx context.Context) (time.Time, int, error) {
	var (
		latest *time.Time
		count  int
	)
	if err := s.db.QueryRow(ctx, `SELECT MAX(scraped_at), COUNT(*) FROM jobs`).Scan(&latest, &count); err != nil {
		return time.Time{}, 0, fmt.Errorf("latest job: %w", err)
	}
	if latest == nil {
		return time.Time{}, count, nil
	}
	return latest.UTC(), count, nil
}

func (s *Postgres) CreateSession(ctx context.Context, sess *jobs.Session) error {
	keywords, errs, err := encodeSession(sess)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO scrape_sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.ID, keywords, sess.Location, sess.StartedAt.UTC(), sess.CompletedAt,
		sess.JobsFound, sess.JobsSaved, string(sess.Status), errs,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateSession(ctx context.Context, sess *jobs.Session) error {
	keywords, errs, err := encodeSession(sess)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE scrape_sessions SET keywords = $1, location = $2, completed_at = $3,
		   jobs_found = $4, jobs_saved = $5, status = $6, errors = $7
		 WHERE id = $8`,
		keywords, sess.Location, sess.CompletedAt,
		sess.JobsFound, sess.JobsSaved, string(sess.Status), errs, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

func (s *Postgres) GetSession(ctx context.Context, id string) (*jobs.Session, error) {
	sess, err := scanPostgresSession(s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM scrape_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Postgres) ListSessions(ctx context.Context, limit int) ([]*jobs.Session, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM scrape_sessions ORDER BY started_at DESC, id ASC LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*jobs.Session, 0)
	for rows.Next() {
		sess, err := scanPostgresSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SaveMatches inserts all matches in one transaction using a batch.
func (s *Postgres) SaveMatches(ctx context.Context, matches []*jobs.Match) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, m := range matches {
		matching, err := encodeJSON(m.MatchingKeywords)
		if err != nil {
			return err
		}
		missing, err := encodeJSON(m.MissingKeywords)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO job_matches (profile_id, job_id, compatibility_score,
				matching_keywords, missing_keywords, algorithm_version, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			m.ProfileID, m.JobID, m.CompatibilityScore, matching, missing, m.AlgorithmVersion, m.CreatedAt.UTC(),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for _, m := range matches {
		if err := results.QueryRow().Scan(&m.ID); err != nil {
			_ = results.Close()
			return fmt.Errorf("save match for job %d: %w", m.JobID, err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Postgres) ListMatches(ctx context.Context, profileID string, limit int) ([]*jobs.Match, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+matchColumns+` FROM job_matches WHERE profile_id = $1
		 ORDER BY compatibility_score DESC, id ASC LIMIT $2`, profileID, lim)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	out := make([]*jobs.Match, 0)
	for rows.Next() {
		var (
			m                 jobs.Match
			matching, missing []byte
		)
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.JobID, &m.CompatibilityScore,
			&matching, &missing, &m.AlgorithmVersion, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if m.MatchingKeywords, err = decodeJSON[string](matching); err != nil {
			return nil, err
		}
		if m.MissingKeywords, err = decodeJSON[string](missing); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func scanPostgresJob(row pgx.Row) (*jobs.Job, error) {
	var (
		j                  jobs.Job
		remote, experience string
		tech               []byte
	)
	if err := row.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &remote, &experience,
		&tech, &j.Description, &j.SourceURL, &j.ApplicationURL, &j.SourceSite, &j.ScrapedAt); err != nil {
		return nil, err
	}

	var err error
	j.RemoteType = jobs.RemoteType(remote)
	j.ExperienceLevel = jobs.ExperienceLevel(experience)
	j.ScrapedAt = j.ScrapedAt.UTC()
	if j.Technologies, err = decodeJSON[string](tech); err != nil {
		return nil, err
	}
	return &j, nil
}

func scanPostgresSession(row pgx.Row) (*jobs.Session, error) {
	var (
		sess           jobs.Session
		keywords, errs []byte
		status         string
	)
	if err := row.Scan(&sess.ID, &keywords, &sess.Location, &sess.StartedAt, &sess.CompletedAt,
		&sess.JobsFound, &sess.JobsSaved, &status, &errs); err != nil {
		return nil, err
	}

	var err error
	sess.Status = jobs.SessionStatus(status)
	if sess.Keywords, err = decodeJSON[string](keywords); err != nil {
		return nil, err
	}
	if sess.Errors, err = decodeJSON[jobs.SessionError](errs); err != nil {
		return nil, err
	}
	return &sess, nil
}
