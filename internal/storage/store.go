// Package storage keeps a SQLite ledger of simulation runs: one row per
// run plus its convergence checks and emitted frames.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/poresim/internal/sim"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBName is the ledger file inside the ledger directory.
const DBName = "ledger.db"

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("storage: run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Run struct {
	ID         string             `json:"id"`
	Kind       string             `json:"kind"`
	ConfigPath string             `json:"config_path"`
	OutputDir  string             `json:"output_dir"`
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at,omitzero"`
	Frames     int                `json:"frames"`
	Checks     int                `json:"checks"`
	Iterations int                `json:"iterations"`
	Converged  bool               `json:"converged"`
	Error      string             `json:"error,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Check is one recorded convergence check.
type Check struct {
	Seq       int       `json:"seq"`
	Stage     string    `json:"stage"`
	Cycle     int       `json:"cycle"`
	Iteration int       `json:"iteration"`
	Total     int       `json:"total"`
	Averages  []float64 `json:"averages"`
	Errors    []float64 `json:"errors"`
	Converged bool      `json:"converged"`
}

// Frame is one recorded output frame.
type Frame struct {
	Frame        int     `json:"frame"`
	Stage        string  `json:"stage"`
	Cycle        int     `json:"cycle"`
	Iteration    int     `json:"iteration"`
	Total        int     `json:"total"`
	PressureDrop float64 `json:"pressure_drop"`
	Cohesion     float64 `json:"cohesion"`
}

type Store struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// Open creates dir if needed and opens the ledger inside it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, dir: dir, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Dir() string { return s.dir }

// BeginRun records a new running run and returns its ID. IDs carry a
// random suffix so runs started in the same clock tick stay distinct.
func (s *Store) BeginRun(ctx context.Context, kind, configPath, outputDir string) (string, error) {
	started := s.now().UTC()
	id := fmt.Sprintf("%s_%d_%s", kind, started.UnixNano(), uuid.NewString()[:8])
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, config_path, output_dir, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, kind, configPath, outputDir, StatusRunning, started.Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run completed, or failed when runErr is not nil. res
// may be nil for runs that never started stepping.
func (s *Store) FinishRun(ctx context.Context, id string, res *sim.Result, runErr error) error {
	status, msg := StatusCompleted, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	if res == nil {
		res = &sim.Result{}
	}
	res = encodable(res)
	metrics, err := json.Marshal(res.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	full, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	r, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, frames = ?, checks = ?,
			iterations = ?, converged = ?, error = ?, metrics = ?, result = ?
		WHERE id = ?`,
		status, s.now().UTC().Format(timeLayout), res.Frames, res.Checks,
		res.Iterations, res.Converged, msg, string(metrics), string(full), id)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// AddCheck appends a convergence check to run id.
func (s *Store) AddCheck(ctx context.Context, id string, c Check) error {
	avgs, err := json.Marshal(c.Averages)
	if err != nil {
		return err
	}
	errs, err := json.Marshal(nanSafe(c.Errors))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checks (run_id, seq, stage, cycle, iteration, total, averages, errors, converged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.Seq, c.Stage, c.Cycle, c.Iteration, c.Total, string(avgs), string(errs), c.Converged)
	if err != nil {
		return fmt.Errorf("failed to insert check: %w", err)
	}
	return nil
}

func (s *Store) AddFrame(ctx context.Context, id string, f Frame) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frames (run_id, frame, stage, cycle, iteration, total, pressure_drop, cohesion)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, f.Frame, f.Stage, f.Cycle, f.Iteration, f.Total, f.PressureDrop, f.Cohesion)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}
	return nil
}

const runColumns = `id, kind, config_path, output_dir, status, started_at, finished_at,
	frames, checks, iterations, converged, error, metrics`

// List returns every run, newest first.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) Load(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadResult returns the stored result of a finished run.
func (s *Store) LoadResult(ctx context.Context, id string) (*sim.Result, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if !raw.Valid {
		return nil, nil
	}
	var res sim.Result
	if err := json.Unmarshal([]byte(raw.String), &res); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &res, nil
}

func (s *Store) LoadChecks(ctx context.Context, id string) ([]Check, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, stage, cycle, iteration, total, averages, errors, converged
		FROM checks WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query checks: %w", err)
	}
	defer rows.Close()

	checks := make([]Check, 0)
	for rows.Next() {
		var c Check
		var avgs, errs string
		if err := rows.Scan(&c.Seq, &c.Stage, &c.Cycle, &c.Iteration, &c.Total, &avgs, &errs, &c.Converged); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		if err := json.Unmarshal([]byte(avgs), &c.Averages); err != nil {
			return nil, fmt.Errorf("failed to decode averages: %w", err)
		}
		var raw []*float64
		if err := json.Unmarshal([]byte(errs), &raw); err != nil {
			return nil, fmt.Errorf("failed to decode errors: %w", err)
		}
		c.Errors = fromNullable(raw)
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (s *Store) LoadFrames(ctx context.Context, id string) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, stage, cycle, iteration, total, pressure_drop, cohesion
		FROM frames WHERE run_id = ? ORDER BY frame`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	frames := make([]Frame, 0)
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.Frame, &f.Stage, &f.Cycle, &f.Iteration, &f.Total, &f.PressureDrop, &f.Cohesion); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                           Run
		cfg, out, finished, errText sql.NullString
		metrics                     sql.NullString
		started                     string
	)
	if err := sc.Scan(&r.ID, &r.Kind, &cfg, &out, &r.Status, &started, &finished,
		&r.Frames, &r.Checks, &r.Iterations, &r.Converged, &errText, &metrics); err != nil {
		return r, err
	}
	r.ConfigPath, r.OutputDir, r.Error = cfg.String, out.String, errText.String

	var err error
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return r, fmt.Errorf("failed to parse start time: %w", err)
	}
	if finished.Valid && finished.String != "" {
		if r.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return r, fmt.Errorf("failed to parse finish time: %w", err)
		}
	}
	if metrics.Valid && metrics.String != "" && metrics.String != "null" {
		if err := json.Unmarshal([]byte(metrics.String), &r.Metrics); err != nil {
			return r, fmt.Errorf("failed to decode metrics: %w", err)
		}
	}
	return r, nil
}
