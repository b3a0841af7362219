package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/poresim/internal/schedule"
)

const (
	plotHeight = 10
	plotWidth  = 72
)

// finiteSeries drops values asciigraph cannot scale.
func finiteSeries(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Plot draws one series. Series with fewer than two finite points render as
// a short notice.
func Plot(values []float64, caption string) string {
	data := finiteSeries(values)
	if len(data) < 2 {
		return Subtle.Render(fmt.Sprintf("%s: not enough points", caption))
	}
	return asciigraph.Plot(data,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
	)
}

// PlotFluids draws the F1 and F2 series on one chart, F1 in red and F2 in
// blue.
func PlotFluids(f1, f2 []float64, caption string) string {
	a, b := finiteSeries(f1), finiteSeries(f2)
	if len(a) < 2 || len(b) < 2 {
		return Subtle.Render(fmt.Sprintf("%s: not enough points", caption))
	}
	return asciigraph.PlotMany([][]float64{a, b},
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption+" (red f1, blue f2)"),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Blue),
	)
}

// PressureTable lists every boundary of p with its pressure drop.
func PressureTable(p schedule.Pressure) string {
	rows := make([][]string, len(p))
	for i, b := range p {
		rows[i] = []string{
			fmt.Sprint(i),
			fmt.Sprintf("%.6g", b.Inlet),
			fmt.Sprintf("%.6g", b.Outlet),
			fmt.Sprintf("%.6g", b.PressureDrop()),
		}
	}
	return Table([]string{"run", "inlet", "outlet", "delta_p"}, rows)
}

// PressurePlot charts the outlet density against the run index.
func PressurePlot(p schedule.Pressure) string {
	outlets := make([]float64, len(p))
	for i, b := range p {
		outlets[i] = b.Outlet
	}
	return Plot(outlets, "outlet density per run")
}

// RampTable lists every ramp step with its cohesion, rates and share.
func RampTable(r schedule.Ramp) string {
	rows := make([][]string, len(r))
	for i, s := range r {
		rows[i] = []string{
			fmt.Sprint(i),
			fmt.Sprintf("%.6g", s.Cohesion),
			fmt.Sprintf("%.6g", s.Omega[0]),
			fmt.Sprintf("%.6g", s.Omega[1]),
			fmt.Sprint(s.Iterations),
		}
	}
	return Table([]string{"step", "g01", "omega_f1", "omega_f2", "iterations"}, rows)
}

// RampPlot charts the cross cohesion across iterations, one point per
// iteration share so long steps read as long plateaus.
func RampPlot(r schedule.Ramp) string {
	total := r.Total()
	if total == 0 {
		return Subtle.Render("ramp: no iterations")
	}
	var values []float64
	for _, s := range r {
		n := int(math.Ceil(float64(s.Iterations) / float64(total) * plotWidth))
		for i := 0; i < n; i++ {
			values = append(values, s.Cohesion)
		}
	}
	return Plot(values, "cross cohesion over the ramp")
}

// Lines joins rendered blocks with blank lines between them.
func Lines(blocks ...string) string {
	return strings.Join(blocks, "\n\n")
}
