package lattice

import "fmt"

// Axis identifies one of the three lattice directions.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Dims is the lattice size.
type Dims struct {
	NX, NY, NZ int
}

func (d Dims) Volume() int { return d.NX * d.NY * d.NZ }

// Index flattens (x, y, z) with x outermost and z innermost, the order in
// which slice-structured inputs are read.
func (d Dims) Index(x, y, z int) int {
	return (x*d.NY+y)*d.NZ + z
}

func (d Dims) Contains(x, y, z int) bool {
	return x >= 0 && x < d.NX && y >= 0 && y < d.NY && z >= 0 && z < d.NZ
}

// Bounds returns the box covering the whole lattice.
func (d Dims) Bounds() Box {
	return Box{X0: 0, X1: d.NX - 1, Y0: 0, Y1: d.NY - 1, Z0: 0, Z1: d.NZ - 1}
}

// Box is an inclusive voxel region.
type Box struct {
	X0, X1, Y0, Y1, Z0, Z1 int
}

// Voxel returns the box holding the single voxel (x, y, z).
func Voxel(x, y, z int) Box {
	return Box{X0: x, X1: x, Y0: y, Y1: y, Z0: z, Z1: z}
}

// Clip intersects b with the lattice. ok is false if nothing is left.
func (b Box) Clip(d Dims) (Box, bool) {
	c := Box{
		X0: max(b.X0, 0), X1: min(b.X1, d.NX-1),
		Y0: max(b.Y0, 0), Y1: min(b.Y1, d.NY-1),
		Z0: max(b.Z0, 0), Z1: min(b.Z1, d.NZ-1),
	}
	return c, c.X0 <= c.X1 && c.Y0 <= c.Y1 && c.Z0 <= c.Z1
}

func (b Box) Contains(x, y, z int) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1 && z >= b.Z0 && z <= b.Z1
}

// Each calls fn for every voxel of b in x, y, z order.
func (b Box) Each(fn func(x, y, z int)) {
	for x := b.X0; x <= b.X1; x++ {
		for y := b.Y0; y <= b.Y1; y++ {
			for z := b.Z0; z <= b.Z1; z++ {
				fn(x, y, z)
			}
		}
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d, %d:%d]", b.X0, b.X1, b.Y0, b.Y1, b.Z0, b.Z1)
}

type Vec3 [3]float64

func (v Vec3) IsZero() bool { return v[0] == 0 && v[1] == 0 && v[2] == 0 }

// Along returns a vector of magnitude m on axis a.
func Along(a Axis, m float64) Vec3 {
	var v Vec3
	v[a] = m
	return v
}

// Scalar is a dense scalar field in [Dims.Index] order.
type Scalar struct {
	Dims Dims
	Data []float64
}

func NewScalar(d Dims) *Scalar {
	return &Scalar{Dims: d, Data: make([]float64, d.Volume())}
}

func (s *Scalar) At(x, y, z int) float64 { return s.Data[s.Dims.Index(x, y, z)] }

// TagSource is a read-only integer tag per voxel.
type TagSource interface {
	Dims() Dims
	Tag(x, y, z int) int
}

// DynamicsKind selects what a voxel does during a step.
type DynamicsKind int

const (
	// Fluid voxels collide and stream (the default).
	Fluid DynamicsKind = iota
	// NoDynamics voxels are inert and skipped entirely.
	NoDynamics
	// BounceBack voxels reflect populations. Their Density is the pseudo
	// density seen by interaction processors, which models adhesion.
	BounceBack
)

type Dynamics struct {
	Kind    DynamicsKind
	Density float64
}

// CohesionMatrix holds inter-component interaction strengths g[i][j].
type CohesionMatrix [2][2]float64

// Uniform returns a matrix with only the cross term set to g.
func Uniform(g float64) CohesionMatrix {
	return CohesionMatrix{{0, g}, {g, 0}}
}

// WithCross returns a copy with g[0][1] = g[1][0] = g.
func (m CohesionMatrix) WithCross(g float64) CohesionMatrix {
	m[0][1] = g
	m[1][0] = g
	return m
}

func (m CohesionMatrix) Cross() float64 { return m[0][1] }

// RelaxationRates holds one omega per component.
type RelaxationRates [2]float64

// Field is one fluid component on the lattice. It is the opaque flow-field
// collaborator driven by the controllers.
type Field interface {
	Dims() Dims
	SetPeriodic(axis Axis, periodic bool)
	// DefineDynamics assigns d to every voxel whose tag equals tag.
	DefineDynamics(tags TagSource, tag int, d Dynamics) error
	// InitializeAtEquilibrium sets region to the equilibrium at rho and u.
	InitializeAtEquilibrium(region Box, rho float64, u Vec3)
	SetExternalForce(region Box, f Vec3)
	// AddPressureBoundary marks region as a density-controlled boundary.
	AddPressureBoundary(region Box)
	RemovePressureBoundary(region Box)
	SetBoundaryDensity(region Box, rho float64)
	// Initialize computes internal moments after seeding.
	Initialize()
	// CollideAndStream advances the field by one step, then runs attached
	// processors. It blocks until the step is complete.
	CollideAndStream()
	AverageDensity() float64
	Density() *Scalar
	VelocityComponent(axis Axis) *Scalar
}

// Processor runs after the collide-and-stream of the field it is attached to.
type Processor interface {
	Process()
}

// Coupling is a live interaction processor whose parameters may change
// between stages.
type Coupling interface {
	SetCohesion(g CohesionMatrix, omega RelaxationRates)
	// Detach stops the processor from running.
	Detach()
}

// Coupler integrates interaction processors over fields.
type Coupler interface {
	// CoupleComponents couples two components. The processor is attached to
	// fields[0] and runs after that field's step.
	CoupleComponents(fields []Field, g CohesionMatrix, omega RelaxationRates) (Coupling, error)
	// CoupleSingle couples a field with itself through the psi(rho) potential.
	CoupleSingle(field Field, gc, rho0 float64) (Coupling, error)
}
