// Package metrics holds scalar observables recorded while a simulation runs.
package metrics

import "math"

// Metric is a named scalar accumulated over a run.
type Metric interface {
	Name() string
	Observe(values ...float64)
	Value() float64
	Reset()
}

// RelativeChange returns |old-new| * 100 / old / checkFreq. A zero old value
// is not guarded and yields Inf or NaN.
func RelativeChange(old, new float64, checkFreq int) float64 {
	return math.Abs(old-new) * 100 / old / float64(checkFreq)
}

// HasConverged reports whether the relative change is below threshold.
func HasConverged(old, new float64, checkFreq int, threshold float64) bool {
	return RelativeChange(old, new, checkFreq) < threshold
}

// Convergence tracks the running average density of one or more fluids and
// reports when all of them have settled.
type Convergence struct {
	name      string
	checkFreq int
	threshold float64
	prev      []float64
	errs      []float64
	converged bool
}

func NewConvergence(fluids, checkFreq int, threshold float64) *Convergence {
	c := &Convergence{
		name:      "convergence",
		checkFreq: checkFreq,
		threshold: threshold,
		prev:      make([]float64, fluids),
		errs:      make([]float64, fluids),
	}
	c.Reset()
	return c
}

func (c *Convergence) Name() string { return c.name }

func (c *Convergence) CheckFreq() int { return c.checkFreq }

func (c *Convergence) Threshold() float64 { return c.threshold }

// Due reports whether iteration iter is a check iteration.
func (c *Convergence) Due(iter int) bool {
	return iter%c.checkFreq == 0
}

// Update compares values against the previous check and stores them as the
// new baseline whatever the outcome. It returns true only when every fluid
// is below threshold, along with the per-fluid relative changes.
func (c *Convergence) Update(values ...float64) (bool, []float64) {
	all := true
	errs := make([]float64, len(c.prev))
	for i := range c.prev {
		errs[i] = RelativeChange(c.prev[i], values[i], c.checkFreq)
		if !(errs[i] < c.threshold) {
			all = false
		}
		c.prev[i] = values[i]
	}
	c.errs = errs
	c.converged = all
	return all, errs
}

// Converged reports the outcome of the last Update.
func (c *Convergence) Converged() bool { return c.converged }

// Previous returns a copy of the current baseline.
func (c *Convergence) Previous() []float64 {
	return append([]float64(nil), c.prev...)
}

// Value returns the largest relative change of the last check.
func (c *Convergence) Value() float64 {
	worst := 0.0
	for _, e := range c.errs {
		if math.IsNaN(e) || e > worst {
			worst = e
		}
	}
	return worst
}

// Reset restores the baseline to 1.0 for every fluid.
func (c *Convergence) Reset() {
	for i := range c.prev {
		c.prev[i] = 1.0
		c.errs[i] = 0
	}
	c.converged = false
}
