package sim

import (
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/schedule"
)

// bcMode selects which fields carry the inlet/outlet density boundary and
// how a schedule entry maps onto them.
type bcMode int

const (
	bcNone bcMode = iota
	// F1 pushed in at the inlet, F2 drawn out at the outlet.
	bcBoth
	// F2 only.
	bcSecondary
	// F2 follows the schedule, F1 pinned at the no-fluid density.
	bcDrying
)

// rampMode selects the second stage.
type rampMode int

const (
	rampNone rampMode = iota
	// Stepped pressure cycles with early exit.
	rampPressure
	// One boundary for exactly MaxRampIter steps.
	rampFixed
	// Cohesion and relaxation schedule with exact shares.
	rampCohesion
)

// neutralCross is the cross cohesion used while drying variants equilibrate.
const neutralCross = 1.0

// plan is the per-kind strategy consumed by Controller.Run.
type plan struct {
	boundaries  bcMode
	equilibrate bool
	eqOutputs   Outputs
	neutralEq   bool
	ramp        rampMode
	rampOutputs Outputs
	cycleCap    func(b Budget) int
}

func planFor(k Kind) plan {
	switch k {
	case Drainage:
		return plan{
			boundaries:  bcBoth,
			ramp:        rampPressure,
			rampOutputs: OutAll,
			cycleCap:    func(b Budget) int { return b.MaxIter },
		}
	case RunOut:
		return plan{
			boundaries:  bcSecondary,
			equilibrate: true,
			eqOutputs:   OutAll,
			ramp:        rampPressure,
			rampOutputs: OutImage | OutDump,
			cycleCap:    func(b Budget) int { return b.MaxRampIter },
		}
	case Drying:
		return plan{
			boundaries:  bcDrying,
			equilibrate: true,
			eqOutputs:   OutAll,
			neutralEq:   true,
			ramp:        rampFixed,
			rampOutputs: OutAll,
			cycleCap:    func(b Budget) int { return b.MaxRampIter },
		}
	case DryingRate:
		return plan{
			boundaries:  bcDrying,
			equilibrate: true,
			eqOutputs:   OutAll,
			neutralEq:   true,
			ramp:        rampCohesion,
			rampOutputs: OutAll,
		}
	default:
		return plan{
			equilibrate: true,
			eqOutputs:   OutImage | OutDump,
		}
	}
}

// PressureSchedule builds the boundary densities a controller of kind
// steps through. Drying variants size the step with the neutral cross
// cohesion.
func PressureSchedule(kind Kind, d Densities, f Fluids, runs int, minRadius float64) schedule.Pressure {
	initial := schedule.Boundary{Inlet: d.inlet(), Outlet: d.outlet()}
	switch kind {
	case Drainage, RunOut:
		step := schedule.CapillaryStep(f.Adhesion, f.Cohesion, initial.Inlet, d.NoFluid, minRadius)
		return schedule.PressureRamp(initial, step, runs)
	case Drying, DryingRate:
		step := schedule.CapillaryStep(f.Adhesion, neutralCross, initial.Inlet, d.NoFluid, minRadius)
		return schedule.DryingBoundaries(initial, step, runs)
	}
	return schedule.Pressure{initial}
}

// boundaryFields lists the fields that receive the pressure boundary.
func (c *Controller) boundaryFields() []lattice.Field {
	switch c.plan.boundaries {
	case bcBoth, bcDrying:
		return []lattice.Field{c.f1, c.f2}
	case bcSecondary:
		return []lattice.Field{c.f2}
	}
	return nil
}

// applyBoundary assigns b to the boundary fields.
func (c *Controller) applyBoundary(b schedule.Boundary) {
	switch c.plan.boundaries {
	case bcBoth:
		c.bc.set(c.f1, b.Inlet, c.densities.NoFluid)
		c.bc.set(c.f2, c.densities.NoFluid, b.Outlet)
	case bcSecondary:
		c.bc.set(c.f2, b.Inlet, b.Outlet)
	case bcDrying:
		c.bc.set(c.f2, b.Inlet, b.Outlet)
		c.bc.set(c.f1, c.densities.NoFluid, c.densities.NoFluid)
	default:
		return
	}
	c.applied = b
}

// cohesionMatrix is the matrix installed at setup. Coupled components are
// ordered F2, F1.
func (c *Controller) cohesionMatrix() lattice.CohesionMatrix {
	if c.plan.neutralEq {
		return lattice.CohesionMatrix{
			{c.cohesion.G00, neutralCross},
			{neutralCross, c.cohesion.G11},
		}
	}
	return lattice.Uniform(c.fluids.Cohesion)
}

// componentRates orders per-fluid relaxation rates as the coupled
// components.
func componentRates(omegaF1, omegaF2 float64) lattice.RelaxationRates {
	return lattice.RelaxationRates{omegaF2, omegaF1}
}

func (c *Controller) initialRates() lattice.RelaxationRates {
	if c.kind == DryingRate && len(c.ramp) > 0 {
		return componentRates(c.ramp[0].Omega[0], c.ramp[0].Omega[1])
	}
	return componentRates(c.fluids.OmegaF1, c.fluids.OmegaF2)
}
