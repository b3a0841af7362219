package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/san-kum/poresim/internal/config"
	"github.com/san-kum/poresim/internal/export"
	"github.com/san-kum/poresim/internal/sim"
	"github.com/san-kum/poresim/internal/storage"
	"github.com/san-kum/poresim/internal/viz"
)

func showSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(config.ModelMultiphase); err != nil {
		return err
	}
	kind, _ := cfg.Kind()

	p, err := cfg.PressureSchedule()
	if err != nil {
		return err
	}
	fmt.Println(viz.Title.Render("pressure schedule (" + kind.String() + ")"))
	fmt.Print(viz.PressureTable(p))
	if len(p) > 1 {
		fmt.Println()
		fmt.Println(viz.PressurePlot(p))
	}

	if kind == sim.DryingRate {
		r, err := cfg.Ramp()
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(viz.Title.Render("ramp schedule (" + cfg.Fluids.ChangeType + ")"))
		fmt.Print(viz.RampTable(r))
		fmt.Println()
		fmt.Println(viz.RampPlot(r))
	}
	return nil
}

func withLedger(fn func(ctx context.Context, st *storage.Store) error) error {
	st, err := storage.Open(ledgerDir)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}

func listRuns(cmd *cobra.Command, args []string) error {
	return withLedger(func(ctx context.Context, st *storage.Store) error {
		runs, err := st.List(ctx)
		if err != nil {
			return err
		}
		fmt.Print(viz.RenderRuns(runs))
		return nil
	})
}

func plotRun(cmd *cobra.Command, args []string) error {
	return withLedger(func(ctx context.Context, st *storage.Store) error {
		run, err := st.Load(ctx, args[0])
		if err != nil {
			return err
		}
		checks, err := st.LoadChecks(ctx, run.ID)
		if err != nil {
			return err
		}

		fmt.Println(viz.Field("run", run.ID))
		fmt.Println(viz.Field("kind", run.Kind))
		fmt.Println(viz.Label.Render("status") + viz.Status(run.Status))
		fmt.Println(viz.Field("checks", len(checks)))
		fmt.Println()
		fmt.Println(viz.RenderConvergence(checks))

		frames, err := st.LoadFrames(ctx, run.ID)
		if err != nil {
			return err
		}
		drops := make([]float64, 0, len(frames))
		for _, f := range frames {
			if f.PressureDrop != 0 {
				drops = append(drops, f.PressureDrop)
			}
		}
		if len(drops) > 1 {
			fmt.Println()
			fmt.Println(viz.Plot(drops, "pressure drop per frame"))
		}
		return nil
	})
}

func exportRun(cmd *cobra.Command, args []string) error {
	return withLedger(func(ctx context.Context, st *storage.Store) error {
		return st.ExportJSON(ctx, args[0], outputPath)
	})
}

func showSummary(cmd *cobra.Command, args []string) error {
	s, err := export.ReadSummary(filepath.Join(args[0], export.SummaryFile))
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderSummary(s))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	flows := make([]string, 0, len(config.Presets))
	if len(args) == 1 {
		flows = append(flows, args[0])
	} else {
		for flow := range config.Presets {
			flows = append(flows, flow)
		}
		sort.Strings(flows)
	}

	for _, flow := range flows {
		presets := config.ListPresets(flow)
		if len(presets) == 0 {
			fmt.Printf("no presets for flow: %s\n", flow)
			continue
		}
		fmt.Printf("presets for %s:\n", viz.Title.Render(flow))
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	flow, name, path := args[0], args[1], args[2]
	cfg := config.GetPreset(flow, name)
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s/%s (available: %v)", flow, name, config.ListPresets(flow))
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
