package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/logging"
	"github.com/san-kum/poresim/internal/metrics"
)

// SingleFluid parameterizes the phase-change model.
type SingleFluid struct {
	Omega    float64
	Cohesion float64
	Adhesion float64
}

// Potential holds the psi(rho) parameters.
type Potential struct {
	Rho0 float64
	Psi0 float64
}

// SingleComponent drives the single-fluid phase-change model. Densities are
// seeded from a density field instead of the tags, and frames are written
// only once the average density has converged.
type SingleComponent struct {
	field    lattice.Field
	geom     *geometry.Domain
	density  *geometry.DensityField
	coupler  lattice.Coupler
	coupling lattice.Coupling

	phase     Phase
	files     FileNames
	periodic  Periodic
	fluid     SingleFluid
	potential Potential
	force     float64

	writer    Writer
	logger    *slog.Logger
	observers []Observer

	frame int
	total int
}

func NewSingle(field lattice.Field, geom *geometry.Domain, density *geometry.DensityField, coupler lattice.Coupler) *SingleComponent {
	return &SingleComponent{
		field:     field,
		geom:      geom,
		density:   density,
		coupler:   coupler,
		writer:    discardWriter{},
		logger:    slog.New(slog.DiscardHandler),
		potential: Potential{Rho0: 1, Psi0: 1},
	}
}

func (s *SingleComponent) Phase() Phase { return s.phase }

func (s *SingleComponent) Frames() int { return s.frame }

func (s *SingleComponent) configure(fn func()) error {
	if s.phase >= PhaseSetUp {
		return ErrConfigured
	}
	fn()
	s.phase = PhaseConfigured
	return nil
}

func (s *SingleComponent) SetFileNames(f FileNames) error {
	return s.configure(func() { s.files = f })
}

func (s *SingleComponent) SetPeriodic(p Periodic) error {
	return s.configure(func() {
		s.periodic = p
		s.field.SetPeriodic(lattice.AxisX, p.X)
		s.field.SetPeriodic(lattice.AxisY, p.Y)
		s.field.SetPeriodic(lattice.AxisZ, p.Z)
	})
}

func (s *SingleComponent) SetFluid(f SingleFluid) error {
	return s.configure(func() { s.fluid = f })
}

func (s *SingleComponent) SetPotential(p Potential) error {
	return s.configure(func() { s.potential = p })
}

// SetExternalForce sets the body force along x.
func (s *SingleComponent) SetExternalForce(fx float64) error {
	return s.configure(func() { s.force = fx })
}

func (s *SingleComponent) SetWriter(w Writer) error {
	return s.configure(func() { s.writer = w })
}

func (s *SingleComponent) SetLogger(l *slog.Logger) {
	s.logger = l.With("kind", "single-component")
}

func (s *SingleComponent) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *SingleComponent) notify(e Event) {
	e.Phase = s.phase
	e.Total = s.total
	for _, o := range s.observers {
		o.Observe(e)
	}
}

func (s *SingleComponent) SetUp() error {
	if s.phase >= PhaseSetUp {
		return ErrConfigured
	}
	coupling, err := s.coupler.CoupleSingle(s.field, s.fluid.Cohesion, s.potential.Rho0)
	if err != nil {
		return fmt.Errorf("failed to couple fluid: %w", err)
	}
	s.coupling = coupling

	if !s.geom.Loaded() {
		if err := s.geom.LoadFile(s.files.Geometry); err != nil {
			return err
		}
	}
	if err := s.writer.WriteGeometry(s.geom); err != nil {
		return fmt.Errorf("failed to write geometry: %w", err)
	}
	if !s.density.Loaded() {
		if err := s.density.LoadFile(s.files.Density); err != nil {
			return err
		}
	}
	if s.density.Dims != s.geom.Dims() {
		return fmt.Errorf("density field %v does not match geometry %v: %w",
			s.density.Dims, s.geom.Dims(), lattice.ErrDimensionMismatch)
	}

	if err := s.field.DefineDynamics(s.geom, geometry.TagSolid, lattice.Dynamics{Kind: lattice.NoDynamics}); err != nil {
		return fmt.Errorf("failed to define dynamics: %w", err)
	}
	if err := s.field.DefineDynamics(s.geom, geometry.TagSurface, lattice.Dynamics{Kind: lattice.BounceBack, Density: s.fluid.Adhesion}); err != nil {
		return fmt.Errorf("failed to define dynamics: %w", err)
	}

	dims := s.geom.Dims()
	dims.Bounds().Each(func(x, y, z int) {
		if s.geom.Tag(x, y, z) == geometry.TagVoid {
			s.field.InitializeAtEquilibrium(lattice.Voxel(x, y, z), s.density.At(x, y, z), lattice.Vec3{})
		}
	})
	if s.force != 0 {
		s.field.SetExternalForce(dims.Bounds(), lattice.Along(lattice.AxisX, s.force))
	}
	s.field.Initialize()

	s.phase = PhaseSetUp
	s.logger.Info("setup complete", "dims", fmt.Sprintf("%dx%dx%d", dims.NX, dims.NY, dims.NZ))
	return nil
}

// Run steps the field for b.MaxIter iterations. Like Controller.Run it
// runs once and leaves the model in PhaseFailed on error.
func (s *SingleComponent) Run(ctx context.Context, b Budget) (*Result, error) {
	switch {
	case s.phase == PhaseCompleted:
		return nil, ErrCompleted
	case s.phase > PhaseSetUp:
		return nil, ErrFailed
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	res, err := s.run(ctx, b)
	if err != nil {
		s.phase = PhaseFailed
		s.logger.Warn("run failed", "frames", s.frame, "iterations", s.total, "error", err)
	}
	return res, err
}

func (s *SingleComponent) run(ctx context.Context, b Budget) (*Result, error) {
	if s.phase < PhaseSetUp {
		if err := s.SetUp(); err != nil {
			return nil, err
		}
	}
	defer func() {
		if s.coupling != nil {
			s.coupling.Detach()
		}
	}()

	monitor := metrics.NewConvergence(1, b.CheckFreq, b.Threshold)
	drift := metrics.NewMassDrift()
	result := &Result{Kind: "single-component", Metrics: make(map[string]float64)}
	stats := StageStats{Stage: StageEquilibration}
	converged := false

	s.phase = PhaseEquilibrating
	s.logger.Info("stage started", "stage", StageEquilibration, "budget", b.MaxIter)
	s.notify(Event{Kind: EventStage, Stage: StageEquilibration, Budget: b.MaxIter})

	for it := 0; it < b.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			result.Stages = []StageStats{stats}
			return result, err
		}
		s.field.CollideAndStream()
		s.total++
		stats.Iterations++
		if s.logger.Enabled(ctx, logging.LevelTrace) {
			s.logger.Log(ctx, logging.LevelTrace, "step", "iteration", s.total)
		}

		if monitor.Due(it) && !converged {
			avg := s.field.AverageDensity()
			drift.Observe(avg)
			ok, errs := monitor.Update(avg)
			result.Checks++
			converged = ok
			s.logger.Debug("relative change", "iteration", it, "f", errs[0], "converged", ok)
			s.notify(Event{Kind: EventCheck, Stage: StageEquilibration, Iteration: it, Budget: b.MaxIter,
				Averages: []float64{avg}, Errors: errs, Converged: ok})
		}

		if converged && it%b.OutputFreq == 0 {
			snap := snapshotOf(s.field, "f", s.frame, OutImage|OutDump)
			if err := s.writer.WriteSnapshot(snap); err != nil {
				result.Stages = []StageStats{stats}
				return result, &FrameError{Frame: s.frame, Stage: StageEquilibration, Wrapped: err}
			}
			s.logger.Debug("frame written", "frame", s.frame, "iteration", it)
			s.notify(Event{Kind: EventFrame, Stage: StageEquilibration, Iteration: it, Budget: b.MaxIter, Frame: s.frame})
			s.frame++
		}
	}

	stats.Converged = converged
	s.phase = PhaseCompleted
	result.Stages = []StageStats{stats}
	result.Frames = s.frame
	result.Iterations = s.total
	result.Converged = converged
	result.Metrics[monitor.Name()] = monitor.Value()
	result.Metrics[drift.Name()] = drift.Value()

	s.logger.Info("run complete", "frames", s.frame, "iterations", s.total, "converged", converged)
	s.notify(Event{Kind: EventDone, Result: result})
	return result, nil
}
