package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/poresim/internal/config"
	"github.com/san-kum/poresim/internal/experiment"
	"github.com/san-kum/poresim/internal/logging"
	"github.com/san-kum/poresim/internal/sim"
	"github.com/san-kum/poresim/internal/storage"
	"github.com/san-kum/poresim/internal/viz"
)

// loadRunConfig resolves the config argument or the --preset flag.
func loadRunConfig(args []string) (*config.Config, string, error) {
	if preset != "" {
		if len(args) > 0 {
			return nil, "", fmt.Errorf("give either a config file or --preset, not both")
		}
		flow, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, "", fmt.Errorf("preset must be flow/name, got %q", preset)
		}
		cfg := config.GetPreset(flow, name)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(flow))
		}
		return cfg, "preset:" + preset, nil
	}
	if len(args) == 0 {
		return nil, "", fmt.Errorf("a config file or --preset is required")
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, args[0], nil
}

func openLedger() (*storage.Store, error) {
	if noLedger {
		return nil, nil
	}
	return storage.Open(ledgerDir)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runModel returns the RunE of a model command. A configuration failure
// prints status -1 and never starts the simulation.
func runModel(model string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, source, err := loadRunConfig(args)
		if err != nil {
			fmt.Printf("status: %d\n", experiment.StatusFailed)
			return err
		}

		st, err := openLedger()
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		ctx, cancel := signalContext()
		defer cancel()

		opts := experiment.Options{
			ConfigPath: source,
			LogLevel:   logLevel,
			Store:      st,
		}

		var res *sim.Result
		if useTUI {
			res, err = runWithProgress(ctx, cfg, model, opts)
		} else {
			opts.Logger = logging.NewLogger(logLevel, os.Stderr)
			exp := experiment.New(cfg, model, opts)
			if err = exp.Setup(); err == nil {
				res, err = exp.Run(ctx)
			}
		}

		fmt.Printf("status: %d\n", experiment.Status(err))
		if err != nil {
			return err
		}
		fmt.Println(viz.RenderResult(res))
		return nil
	}
}

// runWithProgress runs the experiment behind a live view. Logs go to
// poresim.log in the ledger directory so they do not tear the view.
func runWithProgress(ctx context.Context, cfg *config.Config, model string, opts experiment.Options) (*sim.Result, error) {
	logOut := io.Discard
	if err := os.MkdirAll(ledgerDir, 0755); err == nil {
		if f, err := os.OpenFile(filepath.Join(ledgerDir, "poresim.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			defer f.Close()
			logOut = f
		}
	}
	opts.Logger = logging.NewLogger(logLevel, logOut)

	title := model
	if model == config.ModelMultiphase {
		title = model + " / " + cfg.Flow.Type
	}
	p := tea.NewProgram(viz.NewProgress(title))
	opts.Observers = append(opts.Observers, viz.NewProgramObserver(p))

	exp := experiment.New(cfg, model, opts)
	if err := exp.Setup(); err != nil {
		return nil, err
	}

	type outcome struct {
		res *sim.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := exp.Run(ctx)
		p.Send(viz.DoneMsg{Result: res, Err: err})
		done <- outcome{res, err}
	}()

	if _, err := p.Run(); err != nil {
		opts.Logger.Warn("live view failed", "error", err)
	}
	out := <-done
	return out.res, out.err
}

func runBatch(cmd *cobra.Command, args []string) error {
	model, paths := args[0], args[1:]

	st, err := openLedger()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	jobs := make([]experiment.Job, len(paths))
	for i, p := range paths {
		jobs[i] = experiment.Job{Path: p, Model: model}
	}

	logger := logging.NewLogger(logLevel, os.Stderr)
	batch := experiment.NewBatch(experiment.Options{LogLevel: logLevel, Logger: logger, Store: st}, workers)
	outcomes := batch.Run(ctx, jobs)

	rows := make([][]string, len(outcomes))
	for i, o := range outcomes {
		state, detail := "completed", ""
		if o.Err != nil {
			state, detail = "failed", o.Err.Error()
		} else if o.Result != nil {
			detail = fmt.Sprintf("%d iterations, %d frames", o.Result.Iterations, o.Result.Frames)
		}
		rows[i] = []string{o.Job.Path, fmt.Sprint(o.Status), viz.Status(state), detail}
	}
	fmt.Print(viz.Table([]string{"config", "status", "state", "detail"}, rows))

	if n := experiment.Failed(outcomes); n > 0 {
		return fmt.Errorf("%d of %d runs failed", n, len(outcomes))
	}
	return nil
}
