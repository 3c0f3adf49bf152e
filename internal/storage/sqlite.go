package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/jobscout/internal/jobs"
	_ "modernc.org/sqlite" // Register sqlite driver
)

//go:embed migrations/sqlite.sql
var sqliteMigration string

const jobColumns = `id, title, company, location, remote_type, experience_level,
	technologies, description, source_url, application_url, source_site, scraped_at`

const sessionColumns = `id, keywords, location, started_at, completed_at,
	jobs_found, jobs_saved, status, errors`

const matchColumns = `id, profile_id, job_id, compatibility_score,
	matching_keywords, missing_keywords, algorithm_version, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLite is a jobs.Store backed by a single sqlite database file.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: is its own database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteMigration); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) UpsertJob(ctx context.Context, job *jobs.Job) (jobs.UpsertResult, error) {
	tech, err := encodeJSON(job.Technologies)
	if err != nil {
		return jobs.UpsertResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return jobs.UpsertResult{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM jobs WHERE source_url = ?`, job.SourceURL).Scan(&existing)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return jobs.UpsertResult{}, fmt.Errorf("lookup job: %w", err)
	}

	const query = `INSERT INTO jobs (title, company, location, remote_type, experience_level,
		technologies, description, source_url, application_url, source_site, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_url) DO UPDATE SET
			title = excluded.title,
			company = excluded.company,
			location = excluded.location,
			remote_type = excluded.remote_type,
			experience_level = excluded.experience_level,
			technologies = excluded.technologies,
			description = excluded.description,
			application_url = excluded.application_url,
			source_site = excluded.source_site,
			scraped_at = excluded.scraped_at
		RETURNING id`

	var id int64
	err = tx.QueryRowContext(ctx, query,
		job.Title, job.Company, job.Location, string(job.RemoteType), string(job.ExperienceLevel),
		string(tech), job.Description, job.SourceURL, job.ApplicationURL, job.SourceSite,
		formatTime(job.ScrapedAt),
	).Scan(&id)
	if err != nil {
		return jobs.UpsertResult{}, fmt.Errorf("upsert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return jobs.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}

	job.ID = id
	return jobs.UpsertResult{ID: id, Created: created}, nil
}

func (s *SQLite) GetJob(ctx context.Context, id int64) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanSQLiteJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *SQLite) ListJobs(ctx context.Context, q jobs.Query) (*jobs.Page, error) {
	q = q.Normalize()
	where := buildWhere(sqliteDialect, q)

	page := &jobs.Page{Page: q.Page, PerPage: q.PerPage, Jobs: []*jobs.Job{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`+where.String(), where.args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where.String() + orderBy(q) + ` LIMIT ? OFFSET ?`
	args := append(where.args, q.PerPage, q.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		page.Jobs = append(page.Jobs, job)
	}
	return page, rows.Err()
}

func (s *SQLite) Latest(ctx context.Context) (time.Time, int, error) {
	var (
		latest string
		count  int
	)
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(scraped_at), ''), COUNT(*) FROM jobs`).Scan(&latest, &count)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("latest job: %w", err)
	}
	t, err := parseTime(latest)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parse scraped_at: %w", err)
	}
	return t, count, nil
}

func (s *SQLite) CreateSession(ctx context.Context, sess *jobs.Session) error {
	keywords, errs, err := encodeSession(sess)
	if err != nil {
		return err
	}

	const query = `INSERT INTO scrape_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		sess.ID, string(keywords), sess.Location, formatTime(sess.StartedAt), nullableTime(sess.CompletedAt),
		sess.JobsFound, sess.JobsSaved, string(sess.Status), string(errs),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateSession(ctx context.Context, sess *jobs.Session) error {
	keywords, errs, err := encodeSession(sess)
	if err != nil {
		return err
	}

	const query = `UPDATE scrape_sessions SET keywords = ?, location = ?, completed_at = ?,
		jobs_found = ?, jobs_saved = ?, status = ?, errors = ?
		WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query,
		string(keywords), sess.Location, nullableTime(sess.CompletedAt),
		sess.JobsFound, sess.JobsSaved, string(sess.Status), string(errs), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

func (s *SQLite) GetSession(ctx context.Context, id string) (*jobs.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM scrape_sessions WHERE id = ?`, id)
	sess, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]*jobs.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM scrape_sessions ORDER BY started_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*jobs.Session, 0)
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveMatches(ctx context.Context, matches []*jobs.Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save matches: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO job_matches (profile_id, job_id, compatibility_score,
		matching_keywords, missing_keywords, algorithm_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, m := range matches {
		matching, err := encodeJSON(m.MatchingKeywords)
		if err != nil {
			return err
		}
		missing, err := encodeJSON(m.MissingKeywords)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query,
			m.ProfileID, m.JobID, m.CompatibilityScore,
			string(matching), string(missing), m.AlgorithmVersion, formatTime(m.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("save match for job %d: %w", m.JobID, err)
		}
		m.ID, _ = res.LastInsertId()
	}

	return tx.Commit()
}

func (s *SQLite) ListMatches(ctx context.Context, profileID string, limit int) ([]*jobs.Match, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM job_matches WHERE profile_id = ?
		ORDER BY compatibility_score DESC, id ASC LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*jobs.Match, 0)
	for rows.Next() {
		var (
			m                 jobs.Match
			matching, missing []byte
			created           string
		)
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.JobID, &m.CompatibilityScore,
			&matching, &missing, &m.AlgorithmVersion, &created); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if m.MatchingKeywords, err = decodeJSON[string](matching); err != nil {
			return nil, err
		}
		if m.MissingKeywords, err = decodeJSON[string](missing); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func scanSQLiteJob(row rowScanner) (*jobs.Job, error) {
	var (
		j                  jobs.Job
		remote, experience string
		tech               []byte
		scraped            string
	)
	if err := row.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &remote, &experience,
		&tech, &j.Description, &j.SourceURL, &j.ApplicationURL, &j.SourceSite, &scraped); err != nil {
		return nil, err
	}

	var err error
	j.RemoteType = jobs.RemoteType(remote)
	j.ExperienceLevel = jobs.ExperienceLevel(experience)
	if j.Technologies, err = decodeJSON[string](tech); err != nil {
		return nil, err
	}
	if j.ScrapedAt, err = parseTime(scraped); err != nil {
		return nil, err
	}
	return &j, nil
}

func scanSQLiteSession(row rowScanner) (*jobs.Session, error) {
	var (
		sess           jobs.Session
		keywords, errs []byte
		started        string
		completed      sql.NullString
		status         string
	)
	if err := row.Scan(&sess.ID, &keywords, &sess.Location, &started, &completed,
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
	if sess.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return nil, err
		}
		sess.CompletedAt = &t
	}
	return &sess, nil
}

func encodeSession(sess *jobs.Session) (keywords, errs []byte, err error) {
	if keywords, err = encodeJSON(sess.Keywords); err != nil {
		return nil, nil, err
	}
	if errs, err = encodeJSON(sess.Errors); err != nil {
		return nil, nil, err
	}
	return keywords, errs, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
