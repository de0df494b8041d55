// Package db stores request logs in SQLite so reports can be produced
// after the run that recorded them.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/recorder"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound          = errors.New("run not found")
	ErrUnsupportedScheme = errors.New("unsupported database scheme")
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id        TEXT PRIMARY KEY,
	run_id    TEXT NOT NULL REFERENCES runs(id),
	position  INTEGER NOT NULL,
	name      TEXT NOT NULL,
	method    TEXT NOT NULL,
	url       TEXT NOT NULL,
	status    INTEGER,
	error     TEXT,
	data      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_run ON entries(run_id, position);
`

// Run summarizes one stored request log.
type Run struct {
	ID        string
	Name      string
	StartedAt time.Time
	Entries   int
	Failed    int
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the database named by conn and creates the schema.
// conn is sqlite://path, sqlite:path or a bare file path.
func Open(ctx context.Context, conn string) (*Store, error) {
	driver, dsn, err := parseConnectionString(conn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A :memory: database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun stores entries as a new run and returns its ID.
func (s *Store) SaveRun(ctx context.Context, name string, entries []recorder.Entry) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, name, started_at) VALUES (?, ?, ?)`,
		runID, name, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, run_id, position, name, method, url, status, error, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		data, err := json.Marshal(e)
		if err != nil {
			return "", fmt.Errorf("encoding entry %s: %w", e.Name, err)
		}
		var status sql.NullInt64
		if e.Response != nil {
			status = sql.NullInt64{Int64: int64(e.Response.StatusCode), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, e.ID, runID, i, e.Name, e.Request.Method, e.Request.URL,
			status, e.Error, string(data)); err != nil {
			return "", fmt.Errorf("inserting entry %s: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.started_at,
		       COUNT(e.id),
		       COALESCE(SUM(CASE WHEN e.id IS NOT NULL AND (e.status IS NULL OR e.status >= 400) THEN 1 ELSE 0 END), 0)
		FROM runs r LEFT JOIN entries e ON e.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			started string
		)
		if err := rows.Scan(&run.ID, &run.Name, &started, &run.Entries, &run.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad timestamp %q: %w", run.ID, started, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// LoadEntries returns the entries of runID in recording order. An empty
// runID selects the most recent run.
func (s *Store) LoadEntries(ctx context.Context, runID string) ([]recorder.Entry, error) {
	if runID == "" {
		runs, err := s.Runs(ctx)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, ErrNotFound
		}
		runID = runs[0].ID
	} else {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM entries WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := []recorder.Entry{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var e recorder.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// DeleteRun removes a run and its entries.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return tx.Commit()
}

// parseConnectionString maps conn to a driver and DSN. Supported forms:
//   - sqlite://path/to/db.sqlite
//   - sqlite:./test.db
//   - ./test.db
func parseConnectionString(conn string) (driver string, dsn string, err error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return "", "", errors.New("empty connection string")
	}

	if rest, ok := strings.CutPrefix(conn, "sqlite://"); ok {
		return "sqlite3", rest, nil
	}
	if rest, ok := strings.CutPrefix(conn, "sqlite:"); ok {
		return "sqlite3", rest, nil
	}

	u, err := url.Parse(conn)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// A path, possibly with a Windows drive letter.
		return "sqlite3", conn, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
}
