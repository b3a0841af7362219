// Package experiment wires a configuration to a controller, its writer, its
// logs and the run ledger, and maps the outcome to a process status.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/poresim/internal/config"
	"github.com/san-kum/poresim/internal/export"
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/logging"
	"github.com/san-kum/poresim/internal/sim"
	"github.com/san-kum/poresim/internal/storage"
)

// Process statuses reported to the caller.
const (
	StatusOK     = 1
	StatusFailed = -1
)

// EventLogName is the JSONL convergence trace written at debug and trace
// levels.
const EventLogName = "checks.jsonl"

var ErrNotSetUp = errors.New("experiment: not set up")

// Status maps a run outcome to the process status.
func Status(err error) int {
	if err != nil {
		return StatusFailed
	}
	return StatusOK
}

type Options struct {
	ConfigPath string
	LogLevel   string
	Logger     *slog.Logger
	Store      *storage.Store // nil disables the ledger
	Observers  []sim.Observer
	Registry   *Registry
}

type Experiment struct {
	cfg    *config.Config
	model  string
	opts   Options
	runner Runner
	writer *export.Writer
	events *logging.EventLog
}

func New(cfg *config.Config, model string, opts Options) *Experiment {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, model: model, opts: opts}
}

// Setup validates the configuration and builds the runner. Validation
// failures are returned as *config.Error before anything touches disk.
func (e *Experiment) Setup() error {
	if err := e.cfg.Validate(e.model); err != nil {
		return err
	}

	runner, err := e.opts.Registry.Build(e.model, e.cfg, lattice.NewSolver())
	if err != nil {
		return err
	}

	w, err := export.NewWriter(e.cfg.Filenames.OutputDirectory)
	if err != nil {
		return err
	}
	w.SetLogger(e.opts.Logger)
	if err := runner.SetWriter(w); err != nil {
		return err
	}
	runner.SetLogger(e.opts.Logger)

	e.events = logging.NewEventLog(w.Dir(), EventLogName, e.opts.LogLevel)
	if e.events != nil {
		runner.AddObserver(NewEventObserver(e.events))
	}
	for _, o := range e.opts.Observers {
		runner.AddObserver(o)
	}

	e.runner = runner
	e.writer = w
	return nil
}

// Runner returns the underlying controller for adding observers.
func (e *Experiment) Runner() Runner {
	return e.runner
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Run drives the runner to completion, recording it in the ledger when a
// store is configured.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.runner == nil {
		return nil, ErrNotSetUp
	}
	defer e.events.Close()

	kind := e.model
	if e.model == config.ModelMultiphase {
		kind = e.cfg.Flow.Type
	}

	var (
		runID string
		rec   *storage.Recorder
	)
	if st := e.opts.Store; st != nil {
		id, err := st.BeginRun(ctx, kind, e.opts.ConfigPath, e.writer.Dir())
		if err != nil {
			return nil, err
		}
		runID = id
		rec = storage.NewRecorder(ctx, st, id)
		e.runner.AddObserver(rec)
	}

	res, runErr := e.runner.Run(ctx, e.cfg.Budget())

	if rec != nil {
		// The ledger is finished with a fresh context so a cancelled run
		// is still marked failed.
		if err := e.opts.Store.FinishRun(context.WithoutCancel(ctx), runID, res, runErr); err != nil {
			e.opts.Logger.Warn("failed to finish ledger run", "run", runID, "error", err)
		}
		if err := rec.Err(); err != nil {
			e.opts.Logger.Warn("ledger recording incomplete", "run", runID, "error", err)
		}
	}
	return res, runErr
}

// Execute loads path, sets up and runs one experiment. The returned status
// is StatusFailed for configuration errors, in which case nothing was
// simulated.
func Execute(ctx context.Context, path, model string, opts Options) (int, *sim.Result, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return StatusFailed, nil, fmt.Errorf("failed to load config: %w", err)
	}
	opts.ConfigPath = path
	return ExecuteConfig(ctx, cfg, model, opts)
}

// ExecuteConfig is Execute for an already loaded configuration.
func ExecuteConfig(ctx context.Context, cfg *config.Config, model string, opts Options) (int, *sim.Result, error) {
	exp := New(cfg, model, opts)
	if err := exp.Setup(); err != nil {
		return StatusFailed, nil, err
	}
	res, err := exp.Run(ctx)
	return Status(err), res, err
}
