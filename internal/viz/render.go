package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/poresim/internal/sim"
	"github.com/san-kum/poresim/internal/storage"
)

// RenderSummary shows a simulation.dat record.
func RenderSummary(s sim.Summary) string {
	var b strings.Builder
	b.WriteString(Field("f1_ads", s.Adhesion) + "\n")
	b.WriteString(Field("diss_rho", s.NoFluid) + "\n")
	b.WriteString(Field("runs", len(s.PressureDrops)) + "\n")
	body := b.String()
	if len(s.PressureDrops) > 1 {
		body += "\n" + Plot(s.PressureDrops, "delta_P per run")
	} else if len(s.PressureDrops) == 1 {
		body += Field("delta_P", s.PressureDrops[0])
	}
	return Panel.Render(strings.TrimRight(body, "\n"))
}

// RenderResult shows the outcome of a finished run.
func RenderResult(r *sim.Result) string {
	if r == nil {
		return Subtle.Render("no result")
	}
	var b strings.Builder
	b.WriteString(Title.Render(r.Kind) + "\n")
	b.WriteString(Field("iterations", r.Iterations) + "\n")
	b.WriteString(Field("checks", r.Checks) + "\n")
	b.WriteString(Field("frames", r.Frames) + "\n")
	state := "settling"
	if r.Converged {
		state = "converged"
	}
	b.WriteString(Label.Render("state") + Status(state) + "\n")

	keys := make([]string, 0, len(r.Metrics))
	for k := range r.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(Field(k, fmt.Sprintf("%.6g", r.Metrics[k])) + "\n")
	}

	if len(r.Stages) > 0 {
		rows := make([][]string, len(r.Stages))
		for i, s := range r.Stages {
			rows[i] = []string{s.Stage, fmt.Sprint(s.Cycle), fmt.Sprint(s.Iterations),
				fmt.Sprint(s.Converged), fmt.Sprintf("%.4g", s.Cohesion)}
		}
		b.WriteString("\n" + Table([]string{"stage", "cycle", "iterations", "converged", "g01"}, rows))
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderRuns lists ledger runs, newest first as given.
func RenderRuns(runs []storage.Run) string {
	if len(runs) == 0 {
		return Subtle.Render("no runs recorded")
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID,
			r.Kind,
			Status(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprint(r.Iterations),
			fmt.Sprint(r.Frames),
		}
	}
	return Table([]string{"id", "kind", "status", "started", "iterations", "frames"}, rows)
}

// ConvergenceSeries splits ledger checks into per-fluid average and
// relative-change series.
func ConvergenceSeries(checks []storage.Check) (avgs, changes [2][]float64) {
	for _, c := range checks {
		for i := 0; i < 2 && i < len(c.Averages); i++ {
			avgs[i] = append(avgs[i], c.Averages[i])
		}
		for i := 0; i < 2 && i < len(c.Errors); i++ {
			changes[i] = append(changes[i], c.Errors[i])
		}
	}
	return avgs, changes
}

// RenderConvergence charts the average densities and relative changes of
// a run's checks.
func RenderConvergence(checks []storage.Check) string {
	if len(checks) == 0 {
		return Subtle.Render("no convergence checks recorded")
	}
	avgs, changes := ConvergenceSeries(checks)
	if len(avgs[1]) == 0 {
		return Lines(
			Plot(avgs[0], "average density"),
			Plot(changes[0], "relative change (%)"),
		)
	}
	return Lines(
		PlotFluids(avgs[0], avgs[1], "average density"),
		PlotFluids(changes[0], changes[1], "relative change (%)"),
	)
}
