package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/poresim/internal/viz"
)

var (
	ledgerDir string
	logLevel  string
	theme     string

	// run flags
	useTUI     bool
	preset     string
	noLedger   bool
	workers    int
	outputPath string
)

// main registers the commands and exits with status 1 when the selected
// command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "poresim",
		Short:         "lattice Boltzmann pore-scale multiphase flow controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			viz.SetTheme(theme)
		},
	}

	rootCmd.PersistentFlags().StringVar(&ledgerDir, "ledger", ".poresim", "run ledger directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: info, debug or trace")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "ocean", "color theme")

	multiphaseCmd := &cobra.Command{
		Use:   "multiphase [config]",
		Short: "run a two-fluid simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModel("multiphase"),
	}
	phaseChangeCmd := &cobra.Command{
		Use:   "phasechange [config]",
		Short: "run a single-fluid phase-change simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModel("phasechange"),
	}
	for _, c := range []*cobra.Command{multiphaseCmd, phaseChangeCmd} {
		c.Flags().BoolVar(&useTUI, "tui", false, "show a live progress view")
		c.Flags().StringVar(&preset, "preset", "", "run a preset as flow/name instead of a config file")
		c.Flags().BoolVar(&noLedger, "no-ledger", false, "do not record the run in the ledger")
	}

	batchCmd := &cobra.Command{
		Use:   "batch [model] [config]...",
		Short: "run several configs concurrently",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runBatch,
	}
	batchCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (default GOMAXPROCS)")

	scheduleCmd := &cobra.Command{
		Use:   "schedule [config]",
		Short: "print the pressure and ramp schedules of a config",
		Args:  cobra.ExactArgs(1),
		RunE:  showSchedule,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the convergence history of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run with its checks and frames as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "output file, - for stdout")

	summaryCmd := &cobra.Command{
		Use:   "summary [output_dir]",
		Short: "show the simulation.dat of an output directory",
		Args:  cobra.ExactArgs(1),
		RunE:  showSummary,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [flow]",
		Short: "list presets, for one flow type or all",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init [flow] [preset] [path]",
		Short: "write a preset as a config file",
		Args:  cobra.ExactArgs(3),
		RunE:  initConfig,
	}

	rootCmd.AddCommand(multiphaseCmd, phaseChangeCmd, batchCmd, scheduleCmd, runsCmd, plotCmd,
		exportCmd, summaryCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
