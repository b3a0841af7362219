package sim

import (
	"fmt"

	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
)

// Kind selects the multiphase controller variant.
type Kind int

const (
	Imbibition Kind = iota
	Drainage
	RunOut
	Drying
	DryingRate
)

var kindNames = map[Kind]string{
	Imbibition: "imbibition",
	Drainage:   "drainage",
	RunOut:     "runout",
	Drying:     "drying",
	DryingRate: "drying-rate",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a flow.type value to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Kinds lists every multiphase variant in declaration order.
func Kinds() []Kind {
	return []Kind{Imbibition, Drainage, RunOut, Drying, DryingRate}
}

// Phase is the controller lifecycle state. Transitions only move forward.
type Phase int

const (
	PhaseConstructed Phase = iota
	PhaseConfigured
	PhaseSetUp
	PhaseEquilibrating
	PhaseRamping
	PhaseCompleted
	// PhaseFailed is terminal: a run that returned an error cannot resume.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseConstructed:
		return "constructed"
	case PhaseConfigured:
		return "configured"
	case PhaseSetUp:
		return "set-up"
	case PhaseEquilibrating:
		return "equilibrating"
	case PhaseRamping:
		return "ramping"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Budget bounds every stage of a run.
type Budget struct {
	MaxIter     int     `json:"max_iter"`
	MaxRampIter int     `json:"max_ramp_iter"`
	CheckFreq   int     `json:"check_freq"`
	OutputFreq  int     `json:"output_freq"`
	Threshold   float64 `json:"threshold"`
}

func (b Budget) validate() error {
	if b.CheckFreq <= 0 {
		return fmt.Errorf("%w: check frequency must be positive, got %d", ErrInvalidBudget, b.CheckFreq)
	}
	if b.OutputFreq <= 0 {
		return fmt.Errorf("%w: output frequency must be positive, got %d", ErrInvalidBudget, b.OutputFreq)
	}
	if b.MaxIter < 0 || b.MaxRampIter < 0 {
		return fmt.Errorf("%w: iteration caps must not be negative", ErrInvalidBudget)
	}
	return nil
}

// FileNames locates the inputs and the output directory.
type FileNames struct {
	Geometry  string
	OutputDir string
	Density   string
}

type Periodic struct {
	X, Y, Z bool
}

// Densities are the seeding and boundary densities. Zero initial inlet and
// outlet values fall back to F1 and F2.
type Densities struct {
	F1, F2     float64
	InitInlet  float64
	InitOutlet float64
	NoFluid    float64
}

func (d Densities) inlet() float64 {
	if d.InitInlet == 0 {
		return d.F1
	}
	return d.InitInlet
}

func (d Densities) outlet() float64 {
	if d.InitOutlet == 0 {
		return d.F2
	}
	return d.InitOutlet
}

// Fluids holds the relaxation rates, the F1/F2 cross cohesion and the F1
// adhesion to solid surfaces.
type Fluids struct {
	OmegaF1  float64
	OmegaF2  float64
	Cohesion float64
	Adhesion float64
}

// Cohesion is the drying cohesion matrix: self terms G00 and G11 and the
// terminal cross term G01.
type Cohesion struct {
	G00, G01, G11 float64
}

// Force is the body force on each fluid along one axis.
type Force struct {
	F1, F2    float64
	Direction lattice.Axis
}

// ParseAxis maps "x", "y" or "z" to an axis.
func ParseAxis(s string) (lattice.Axis, error) {
	switch s {
	case "x":
		return lattice.AxisX, nil
	case "y":
		return lattice.AxisY, nil
	case "z":
		return lattice.AxisZ, nil
	}
	return 0, fmt.Errorf("sim: unknown force direction %q", s)
}

// Outputs selects which snapshot files a frame produces.
type Outputs uint8

const (
	OutImage Outputs = 1 << iota
	OutVelocity
	OutDump

	OutAll = OutImage | OutVelocity | OutDump
)

func (o Outputs) Has(flag Outputs) bool { return o&flag != 0 }

// Snapshot is one fluid's contribution to a frame.
type Snapshot struct {
	Frame    int
	Prefix   string // f1, f2, or f for the single-fluid model
	Outputs  Outputs
	Density  *lattice.Scalar
	Velocity [3]*lattice.Scalar // nil unless OutVelocity is set
}

// Summary is the end-of-run record written to simulation.dat.
type Summary struct {
	Adhesion      float64   `json:"adhesion"`
	NoFluid       float64   `json:"no_fluid"`
	PressureDrops []float64 `json:"pressure_drops"`
}

// Writer persists snapshots and the summary.
type Writer interface {
	WriteGeometry(d *geometry.Domain) error
	WriteSnapshot(s Snapshot) error
	WriteSummary(s Summary) error
}

type discardWriter struct{}

func (discardWriter) WriteGeometry(*geometry.Domain) error { return nil }
func (discardWriter) WriteSnapshot(Snapshot) error         { return nil }
func (discardWriter) WriteSummary(Summary) error           { return nil }

// StageStats describes one completed stage or cycle.
type StageStats struct {
	Stage      string  `json:"stage"`
	Cycle      int     `json:"cycle"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Cohesion   float64 `json:"cohesion"`
}

// Result is returned by a completed run.
type Result struct {
	Kind          string             `json:"kind"`
	Frames        int                `json:"frames"`
	Checks        int                `json:"checks"`
	Iterations    int                `json:"iterations"`
	Converged     bool               `json:"converged"`
	Stages        []StageStats       `json:"stages"`
	PressureDrops []float64          `json:"pressure_drops"`
	Metrics       map[string]float64 `json:"metrics"`
}
