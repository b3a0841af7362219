package sim_test

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/sim"
)

type densityCall struct {
	region lattice.Box
	rho    float64
}

// fakeField counts steps and returns a scripted average density.
type fakeField struct {
	dims        lattice.Dims
	steps       int
	periodic    [3]bool
	dynamics    map[int]lattice.Dynamics
	seeds       map[int]int
	seedRho     map[int]float64
	forces      []lattice.Vec3
	added       []lattice.Box
	removed     []lattice.Box
	densities   []densityCall
	initialized int
	average     func(steps int) float64
	onStep      func()
}

func newFakeField(d lattice.Dims) *fakeField {
	return &fakeField{
		dims:     d,
		dynamics: make(map[int]lattice.Dynamics),
		seeds:    make(map[int]int),
		seedRho:  make(map[int]float64),
		average:  func(int) float64 { return 1.0 },
	}
}

func (f *fakeField) Dims() lattice.Dims { return f.dims }

func (f *fakeField) SetPeriodic(axis lattice.Axis, p bool) { f.periodic[axis] = p }

func (f *fakeField) DefineDynamics(tags lattice.TagSource, tag int, d lattice.Dynamics) error {
	if tags.Dims() != f.dims {
		return lattice.ErrDimensionMismatch
	}
	f.dynamics[tag] = d
	return nil
}

func (f *fakeField) InitializeAtEquilibrium(region lattice.Box, rho float64, u lattice.Vec3) {
	region.Each(func(x, y, z int) {
		idx := f.dims.Index(x, y, z)
		f.seeds[idx]++
		f.seedRho[idx] = rho
	})
}

func (f *fakeField) SetExternalForce(region lattice.Box, v lattice.Vec3) {
	f.forces = append(f.forces, v)
}

func (f *fakeField) AddPressureBoundary(region lattice.Box) { f.added = append(f.added, region) }

func (f *fakeField) RemovePressureBoundary(region lattice.Box) {
	f.removed = append(f.removed, region)
}

func (f *fakeField) SetBoundaryDensity(region lattice.Box, rho float64) {
	f.densities = append(f.densities, densityCall{region, rho})
}

func (f *fakeField) Initialize() { f.initialized++ }

func (f *fakeField) CollideAndStream() {
	f.steps++
	if f.onStep != nil {
		f.onStep()
	}
}

func (f *fakeField) AverageDensity() float64 { return f.average(f.steps) }

func (f *fakeField) Density() *lattice.Scalar { return lattice.NewScalar(f.dims) }

func (f *fakeField) VelocityComponent(axis lattice.Axis) *lattice.Scalar {
	return lattice.NewScalar(f.dims)
}

type fakeCoupling struct {
	matrices []lattice.CohesionMatrix
	rates    []lattice.RelaxationRates
	detached bool
}

func (c *fakeCoupling) SetCohesion(g lattice.CohesionMatrix, omega lattice.RelaxationRates) {
	c.matrices = append(c.matrices, g)
	c.rates = append(c.rates, omega)
}

func (c *fakeCoupling) Detach() { c.detached = true }

type fakeCoupler struct {
	coupling *fakeCoupling
	fields   []lattice.Field
	single   []float64
}

func (c *fakeCoupler) CoupleComponents(fields []lattice.Field, g lattice.CohesionMatrix, omega lattice.RelaxationRates) (lattice.Coupling, error) {
	c.fields = fields
	c.coupling = &fakeCoupling{}
	c.coupling.SetCohesion(g, omega)
	return c.coupling, nil
}

func (c *fakeCoupler) CoupleSingle(field lattice.Field, gc, rho0 float64) (lattice.Coupling, error) {
	c.single = []float64{gc, rho0}
	c.coupling = &fakeCoupling{}
	return c.coupling, nil
}

type fakeWriter struct {
	geometry  int
	snapshots []sim.Snapshot
	summaries []sim.Summary
	failAt    int
}

func (w *fakeWriter) WriteGeometry(*geometry.Domain) error {
	w.geometry++
	return nil
}

func (w *fakeWriter) WriteSnapshot(s sim.Snapshot) error {
	if w.failAt > 0 && len(w.snapshots) == w.failAt {
		return errors.New("disk full")
	}
	w.snapshots = append(w.snapshots, s)
	return nil
}

func (w *fakeWriter) WriteSummary(s sim.Summary) error {
	w.summaries = append(w.summaries, s)
	return nil
}

// frames returns the distinct frame numbers written for prefix.
func (w *fakeWriter) frames(prefix string) []int {
	var out []int
	for _, s := range w.snapshots {
		if s.Prefix == prefix {
			out = append(out, s.Frame)
		}
	}
	return out
}

var testDims = lattice.Dims{NX: 6, NY: 4, NZ: 4}

// testTag lays out a channel: wetted walls at y = 0 and y = 3, interior
// solid along z = 0, primary fluid for x < 3 and void elsewhere.
func testTag(x, y, z int) int {
	switch {
	case y == 0 || y == testDims.NY-1:
		return geometry.TagSurface
	case z == 0:
		return geometry.TagSolid
	case x < 3:
		return geometry.TagPrimary
	}
	return geometry.TagVoid
}

func testDomain() *geometry.Domain {
	var b strings.Builder
	testDims.Bounds().Each(func(x, y, z int) {
		fmt.Fprintf(&b, "%d ", testTag(x, y, z))
	})
	d := geometry.New(testDims)
	if err := d.Load(strings.NewReader(b.String())); err != nil {
		panic(err)
	}
	return d
}

// drifting never converges: the average grows by 50% per step.
func drifting(steps int) float64 { return 1 + 0.5*float64(steps) }
