// Package schedule builds the parameter ramps driven by the simulation
// controllers. Every builder is a pure function returning a fresh value.
package schedule

import "math"

// SurfaceTension is the interfacial tension in lattice units.
const SurfaceTension = 0.15

// Boundary is an inlet/outlet density pair.
type Boundary struct {
	Inlet  float64 `json:"inlet"`
	Outlet float64 `json:"outlet"`
}

// PressureDrop returns (inlet - outlet) / 3, the lattice pressure difference.
func (b Boundary) PressureDrop() float64 {
	return (b.Inlet - b.Outlet) / 3
}

// Pressure is an ordered list of boundary densities. Entry 0 holds the
// initial densities.
type Pressure []Boundary

// Runs returns the number of stepped entries after the initial one.
func (p Pressure) Runs() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// At returns entry n, or the last entry if n is past the end.
func (p Pressure) At(n int) Boundary {
	if n >= len(p) {
		n = len(p) - 1
	}
	return p[n]
}

// CapillaryStep returns the density drop matching the capillary entry
// pressure of a throat of radius minRadius:
//
//	cos(theta) = |4 * adhesion / (cohesion * (inlet - noFluid))|
//	deltaRho   = 6 * SurfaceTension * cos(theta) / minRadius
func CapillaryStep(adhesion, cohesion, inlet, noFluid, minRadius float64) float64 {
	cosTheta := math.Abs(4 * adhesion / (cohesion * (inlet - noFluid)))
	return 6 * SurfaceTension * cosTheta / minRadius
}

// PressureRamp steps the outlet density down from initial in runs equal
// increments of deltaRho/runs. The result has runs+1 entries.
func PressureRamp(initial Boundary, deltaRho float64, runs int) Pressure {
	if runs <= 0 {
		return Pressure{initial}
	}
	p := make(Pressure, runs+1)
	p[0] = initial
	step := deltaRho / float64(runs)
	for n := 1; n <= runs; n++ {
		p[n] = Boundary{Inlet: initial.Inlet, Outlet: initial.Outlet - float64(n)*step}
	}
	return p
}

// DryingBoundaries returns the initial densities followed, when runs > 0,
// by a single drying boundary with the outlet lowered by deltaRho*runs.
func DryingBoundaries(initial Boundary, deltaRho float64, runs int) Pressure {
	if runs <= 0 {
		return Pressure{initial}
	}
	return Pressure{
		initial,
		{Inlet: initial.Inlet, Outlet: initial.Outlet - deltaRho*float64(runs)},
	}
}
