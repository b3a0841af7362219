package schedule

import (
	"errors"
	"fmt"

	"github.com/san-kum/poresim/internal/lattice"
)

var (
	ErrUnknownMode   = errors.New("schedule: unknown change type")
	ErrInvalidSteps  = errors.New("schedule: number of steps must be positive")
	ErrSwitchTooLate = errors.New("schedule: change step exceeds ramp iterations")
)

// Mode selects how a ramp is laid out.
type Mode int

const (
	// ModeRange interpolates N values over [min, max).
	ModeRange Mode = iota
	// ModeStep switches from min to max at a given iteration.
	ModeStep
)

func (m Mode) String() string {
	switch m {
	case ModeRange:
		return "range"
	case ModeStep:
		return "step"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "range":
		return ModeRange, nil
	case "step":
		return ModeStep, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// CohesionSpec describes the cross-cohesion ramp. Steps is the number of
// values in range mode and the switch iteration in step mode.
type CohesionSpec struct {
	Mode  Mode
	Min   float64
	Max   float64
	Steps int
}

func (c CohesionSpec) count() (int, error) {
	if c.Mode == ModeStep {
		return 2, nil
	}
	if c.Steps <= 0 {
		return 0, ErrInvalidSteps
	}
	return c.Steps, nil
}

// ViscositySpec describes the relaxation rates applied at each ramp step.
// When Enabled is false every step uses Constant.
type ViscositySpec struct {
	Enabled  bool
	Constant lattice.RelaxationRates
	Min      lattice.RelaxationRates
	Max      lattice.RelaxationRates
}

// Step is one entry of a ramp.
type Step struct {
	Cohesion   float64                 `json:"cohesion"`
	Omega      lattice.RelaxationRates `json:"omega"`
	Iterations int                     `json:"iterations"`
}

// Ramp is an ordered cohesion and viscosity schedule.
type Ramp []Step

// Total returns the number of iterations across all steps.
func (r Ramp) Total() int {
	n := 0
	for _, s := range r {
		n += s.Iterations
	}
	return n
}

// CohesionValues returns min + n*(max-min)/N for n in [0, N) in range mode,
// and [min, max] in step mode.
func CohesionValues(spec CohesionSpec) ([]float64, error) {
	n, err := spec.count()
	if err != nil {
		return nil, err
	}
	if spec.Mode == ModeStep {
		return []float64{spec.Min, spec.Max}, nil
	}
	inc := (spec.Max - spec.Min) / float64(n)
	values := make([]float64, n)
	for i := range values {
		values[i] = spec.Min + float64(i)*inc
	}
	return values, nil
}

// IterationShares splits maxRampIter across the ramp steps. A step-mode
// spec with a non-zero switch gets [switch, maxRampIter-switch]; anything
// else gets equal integer shares.
func IterationShares(spec CohesionSpec, maxRampIter int) ([]int, error) {
	n, err := spec.count()
	if err != nil {
		return nil, err
	}
	shares := make([]int, n)
	if spec.Mode == ModeStep && spec.Steps != 0 {
		if spec.Steps < 0 || spec.Steps > maxRampIter {
			return nil, fmt.Errorf("%w: %d > %d", ErrSwitchTooLate, spec.Steps, maxRampIter)
		}
		shares[0] = spec.Steps
		shares[1] = maxRampIter - spec.Steps
		return shares, nil
	}
	for i := range shares {
		shares[i] = maxRampIter / n
	}
	return shares, nil
}

// OmegaValues returns the relaxation pair for each ramp step. In range mode
// step n gets min + n*(max-min)/N, matching the cohesion interpolation.
func OmegaValues(spec CohesionSpec, visc ViscositySpec) ([]lattice.RelaxationRates, error) {
	n, err := spec.count()
	if err != nil {
		return nil, err
	}
	values := make([]lattice.RelaxationRates, n)
	switch {
	case !visc.Enabled:
		for i := range values {
			values[i] = visc.Constant
		}
	case spec.Mode == ModeStep:
		values[0] = visc.Min
		values[1] = visc.Max
	default:
		for i := range values {
			for c := 0; c < 2; c++ {
				inc := (visc.Max[c] - visc.Min[c]) / float64(n)
				values[i][c] = visc.Min[c] + float64(i)*inc
			}
		}
	}
	return values, nil
}

// BuildRamp assembles the full ramp from its cohesion and viscosity parts.
func BuildRamp(cohesion CohesionSpec, visc ViscositySpec, maxRampIter int) (Ramp, error) {
	gs, err := CohesionValues(cohesion)
	if err != nil {
		return nil, err
	}
	shares, err := IterationShares(cohesion, maxRampIter)
	if err != nil {
		return nil, err
	}
	omegas, err := OmegaValues(cohesion, visc)
	if err != nil {
		return nil, err
	}

	ramp := make(Ramp, len(gs))
	for i := range ramp {
		ramp[i] = Step{Cohesion: gs[i], Omega: omegas[i], Iterations: shares[i]}
	}
	return ramp, nil
}
