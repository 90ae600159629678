package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/hash"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

var ErrRunNotFound = errors.New("analysis run not found")

// Run is the summary row kept for every stored report.
type Run struct {
	ID           string    `json:"id"`
	Task         string    `json:"task"`
	Dataset      string    `json:"dataset"`
	Model        string    `json:"model"`
	Performance  string    `json:"performance"`
	Examples     int       `json:"examples"`
	ReportDigest string    `json:"report_digest"`
	CreatedAt    time.Time `json:"created_at"`
}

type History struct {
	db  *sql.DB
	now func() time.Time
}

func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id            TEXT PRIMARY KEY,
		task          TEXT NOT NULL,
		dataset       TEXT DEFAULT '',
		model         TEXT DEFAULT '',
		performance   TEXT DEFAULT '',
		examples      INTEGER NOT NULL DEFAULT 0,
		report_digest TEXT NOT NULL,
		report        TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_analysis_runs_model ON analysis_runs(model);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &History{db: db, now: time.Now}, nil
}

func (h *History) Close() error { return h.db.Close() }

// Save stores r under its run id.
func (h *History) Save(ctx context.Context, r types.Report) (Run, error) {
	if r.RunID == "" {
		return Run{}, fmt.Errorf("report has no run id")
	}
	digest, _, err := hash.HashCanonicalJSON(r)
	if err != nil {
		return Run{}, err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return Run{}, fmt.Errorf("marshal report: %w", err)
	}
	run := Run{
		ID:           r.RunID,
		Task:         string(r.Task),
		Dataset:      r.Data.Name,
		Model:        r.Model.Name,
		Performance:  r.Model.Results.Overall.Performance,
		Examples:     r.Data.Examples,
		ReportDigest: digest,
		CreatedAt:    h.now().UTC().Truncate(time.Second),
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, task, dataset, model, performance, examples, report_digest, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Task, run.Dataset, run.Model, run.Performance, run.Examples, run.ReportDigest, string(raw),
		run.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return run, nil
}

// List returns the most recent runs first. limit <= 0 means no limit.
func (h *History) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, task, dataset, model, performance, examples, report_digest, created_at
		 FROM analysis_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run     Run
			created string
		)
		if err := rows.Scan(&run.ID, &run.Task, &run.Dataset, &run.Model, &run.Performance, &run.Examples, &run.ReportDigest, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("run %s: bad created_at %q: %w", run.ID, created, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get loads the full report of one run.
func (h *History) Get(ctx context.Context, id string) (types.Report, error) {
	var raw string
	err := h.db.QueryRowContext(ctx, `SELECT report FROM analysis_runs WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Report{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return types.Report{}, fmt.Errorf("load run %s: %w", id, err)
	}
	var r types.Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return types.Report{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return r, nil
}
