package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mediagrab/internal/jobs"
)

// Store persists job records in SQLite so they survive daemon restarts.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const recordColumns = `id, status, progress, speed, eta, filename, filepath, title, url, type, quality,
    audio_fmt, video_fmt, playlist, parent_id, created_at, finished_at, error, log_json`

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or replaces the journal row for job.
func (s *Store) Save(ctx context.Context, job jobs.Job) error {
	logJSON, err := json.Marshal(job.Log)
	if err != nil {
		return fmt.Errorf("marshal job log: %w", err)
	}
	if job.Log == nil {
		logJSON = []byte("[]")
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO job_records (`+recordColumns+`, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status, progress = excluded.progress, speed = excluded.speed,
             eta = excluded.eta, filename = excluded.filename, filepath = excluded.filepath,
             title = excluded.title, finished_at = excluded.finished_at, error = excluded.error,
             log_json = excluded.log_json, updated_at = excluded.updated_at`,
		job.ID,
		string(job.Status),
		job.Progress,
		job.Speed,
		job.ETA,
		job.Filename,
		job.Filepath,
		job.Title,
		job.URL,
		job.Type,
		job.Quality,
		job.AudioFormat,
		job.VideoFormat,
		boolToInt(job.Playlist),
		nullableString(job.ParentID),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.FinishedAt),
		job.Error,
		string(logJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Remove deletes the journal row for id. Missing rows are ignored.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM job_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove job %s: %w", id, err)
	}
	return nil
}

// Clear removes every journal row and reports how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM job_records`)
	if err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	return res.RowsAffected()
}

// Get returns the journal row for id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM job_records WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// List returns every journaled job ordered by creation time, oldest first.
func (s *Store) List(ctx context.Context) ([]jobs.Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM job_records ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (jobs.Job, error) {
	var (
		job        jobs.Job
		status     string
		playlist   int
		parentID   sql.NullString
		createdAt  string
		finishedAt sql.NullString
		logJSON    string
	)
	if err := row.Scan(
		&job.ID,
		&status,
		&job.Progress,
		&job.Speed,
		&job.ETA,
		&job.Filename,
		&job.Filepath,
		&job.Title,
		&job.URL,
		&job.Type,
		&job.Quality,
		&job.AudioFormat,
		&job.VideoFormat,
		&playlist,
		&parentID,
		&createdAt,
		&finishedAt,
		&job.Error,
		&logJSON,
	); err != nil {
		return jobs.Job{}, err
	}
	job.Status = jobs.Status(status)
	job.Playlist = playlist != 0
	job.ParentID = parentID.String
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("parse created_at for %s: %w", job.ID, err)
	}
	job.CreatedAt = created
	if finishedAt.Valid && finishedAt.String != "" {
		finished, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return jobs.Job{}, fmt.Errorf("parse finished_at for %s: %w", job.ID, err)
		}
		job.FinishedAt = &finished
	}
	job.Log = []jobs.LogEntry{}
	if strings.TrimSpace(logJSON) != "" {
		if err := json.Unmarshal([]byte(logJSON), &job.Log); err != nil {
			return jobs.Job{}, fmt.Errorf("decode log for %s: %w", job.ID, err)
		}
	}
	return job, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	delay := busyRetryInitialBackoff
	var (
		res sql.Result
		err error
	)
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		res, err = s.db.ExecContext(ctx, query, args...)
		if err == nil || !isSQLiteBusy(err) || attempt == busyRetryAttempts-1 {
			return res, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return res, err
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
