package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/logging"
	"github.com/san-kum/poresim/internal/metrics"
	"github.com/san-kum/poresim/internal/schedule"
)

// Controller sequences setup, equilibration and ramp stages of a two-fluid
// run. It owns both fields and the geometry for its whole lifetime and is
// not safe for concurrent use.
type Controller struct {
	kind Kind
	plan plan

	f1, f2   lattice.Field
	geom     *geometry.Domain
	coupler  lattice.Coupler
	coupling lattice.Coupling

	phase     Phase
	dims      lattice.Dims
	dimsSet   bool
	periodic  Periodic
	files     FileNames
	densities Densities
	fluids    Fluids
	cohesion  Cohesion
	ramp      schedule.Ramp
	force     Force
	runs      int
	minRadius float64

	writer    Writer
	logger    *slog.Logger
	observers []Observer

	planes   geometry.Planes
	pressure schedule.Pressure
	applied  schedule.Boundary
	bc       *pressureBoundary

	budget    Budget
	monitor   *metrics.Convergence
	drift     *metrics.MassDrift
	stability *metrics.Stability
	frame     int
	total     int
	stageIter int
	result    *Result
}

// New takes ownership of both fields and the geometry.
func New(kind Kind, f1, f2 lattice.Field, geom *geometry.Domain, coupler lattice.Coupler) *Controller {
	return &Controller{
		kind:      kind,
		plan:      planFor(kind),
		f1:        f1,
		f2:        f2,
		geom:      geom,
		coupler:   coupler,
		writer:    discardWriter{},
		logger:    slog.New(slog.DiscardHandler),
		minRadius: 1,
	}
}

func (c *Controller) Kind() Kind { return c.kind }

func (c *Controller) Phase() Phase { return c.phase }

// Frames returns the number of frames emitted so far.
func (c *Controller) Frames() int { return c.frame }

// Schedule returns the pressure schedule built at setup.
func (c *Controller) Schedule() schedule.Pressure { return c.pressure }

func (c *Controller) configure(fn func()) error {
	if c.phase >= PhaseSetUp {
		return ErrConfigured
	}
	fn()
	c.phase = PhaseConfigured
	return nil
}

func (c *Controller) SetDomainSize(d lattice.Dims) error {
	return c.configure(func() {
		c.dims = d
		c.dimsSet = true
	})
}

// SetPeriodic records the flags and applies them to both fields.
func (c *Controller) SetPeriodic(p Periodic) error {
	return c.configure(func() {
		c.periodic = p
		for _, f := range []lattice.Field{c.f1, c.f2} {
			f.SetPeriodic(lattice.AxisX, p.X)
			f.SetPeriodic(lattice.AxisY, p.Y)
			f.SetPeriodic(lattice.AxisZ, p.Z)
		}
	})
}

func (c *Controller) SetFileNames(f FileNames) error {
	return c.configure(func() { c.files = f })
}

func (c *Controller) SetDensities(d Densities) error {
	return c.configure(func() { c.densities = d })
}

func (c *Controller) SetFluids(f Fluids) error {
	return c.configure(func() { c.fluids = f })
}

// SetCohesion sets the drying cohesion matrix.
func (c *Controller) SetCohesion(g Cohesion) error {
	return c.configure(func() { c.cohesion = g })
}

// SetRamp sets the drying-rate schedule. The ramp is not copied and must
// not be modified afterwards.
func (c *Controller) SetRamp(r schedule.Ramp) error {
	return c.configure(func() { c.ramp = r })
}

func (c *Controller) SetExternalForce(f Force) error {
	return c.configure(func() { c.force = f })
}

// SetPressureSteps sets the number of pressure runs and the smallest throat
// radius used to size each capillary step.
func (c *Controller) SetPressureSteps(runs int, minRadius float64) error {
	return c.configure(func() {
		c.runs = runs
		c.minRadius = minRadius
	})
}

func (c *Controller) SetWriter(w Writer) error {
	return c.configure(func() { c.writer = w })
}

func (c *Controller) SetLogger(l *slog.Logger) {
	c.logger = l.With("kind", c.kind.String())
}

func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

func (c *Controller) notify(e Event) {
	e.Phase = c.phase
	e.Total = c.total
	for _, o := range c.observers {
		o.Observe(e)
	}
}

// SetUp loads the geometry and prepares both fields. It runs at most once.
func (c *Controller) SetUp() error {
	if c.phase >= PhaseSetUp {
		return ErrConfigured
	}
	if c.kind == DryingRate && len(c.ramp) == 0 {
		return ErrMissingRamp
	}

	coupling, err := c.coupler.CoupleComponents([]lattice.Field{c.f2, c.f1}, c.cohesionMatrix(), c.initialRates())
	if err != nil {
		return fmt.Errorf("failed to couple fluids: %w", err)
	}
	c.coupling = coupling

	if err := c.loadGeometry(); err != nil {
		return err
	}

	c.pressure = PressureSchedule(c.kind, c.densities, c.fluids, c.runs, c.minRadius)
	c.applied = c.pressure[0]

	// Kinds without a pressure boundary accept domains too thin for planes.
	if fields := c.boundaryFields(); len(fields) > 0 {
		planes, err := geometry.BoundaryPlanes(c.dims)
		if err != nil {
			return err
		}
		c.planes = planes
		c.replaceBoundary(newPressureBoundary(planes, fields...))
		c.applyBoundary(c.pressure[0])
	}

	if err := c.defineDynamics(); err != nil {
		return err
	}
	c.seed()
	c.applyForces()
	c.f1.Initialize()
	c.f2.Initialize()

	c.phase = PhaseSetUp
	c.logger.Info("setup complete",
		"dims", fmt.Sprintf("%dx%dx%d", c.dims.NX, c.dims.NY, c.dims.NZ),
		"pressure_entries", len(c.pressure))
	return nil
}

func (c *Controller) loadGeometry() error {
	if !c.geom.Loaded() {
		if err := c.geom.LoadFile(c.files.Geometry); err != nil {
			return err
		}
	}
	if c.dimsSet && c.dims != c.geom.Dims() {
		return fmt.Errorf("domain size %v does not match geometry %v: %w",
			c.dims, c.geom.Dims(), lattice.ErrDimensionMismatch)
	}
	c.dims = c.geom.Dims()
	if err := c.writer.WriteGeometry(c.geom); err != nil {
		return fmt.Errorf("failed to write geometry: %w", err)
	}
	return nil
}

func (c *Controller) defineDynamics() error {
	adh := c.fluids.Adhesion
	for _, d := range []struct {
		f   lattice.Field
		adh float64
	}{{c.f1, adh}, {c.f2, -adh}} {
		if err := d.f.DefineDynamics(c.geom, geometry.TagSolid, lattice.Dynamics{Kind: lattice.NoDynamics}); err != nil {
			return fmt.Errorf("failed to define dynamics: %w", err)
		}
		if err := d.f.DefineDynamics(c.geom, geometry.TagSurface, lattice.Dynamics{Kind: lattice.BounceBack, Density: d.adh}); err != nil {
			return fmt.Errorf("failed to define dynamics: %w", err)
		}
	}
	return nil
}

// seed assigns one equilibrium density per field to every void and primary
// voxel. Solid voxels are left alone.
func (c *Controller) seed() {
	var zero lattice.Vec3
	c.dims.Bounds().Each(func(x, y, z int) {
		v := lattice.Voxel(x, y, z)
		switch c.geom.Tag(x, y, z) {
		case geometry.TagVoid:
			c.f2.InitializeAtEquilibrium(v, c.densities.F2, zero)
			c.f1.InitializeAtEquilibrium(v, c.densities.NoFluid, zero)
		case geometry.TagPrimary:
			c.f1.InitializeAtEquilibrium(v, c.densities.F1, zero)
			c.f2.InitializeAtEquilibrium(v, c.densities.NoFluid, zero)
		}
	})
}

func (c *Controller) applyForces() {
	all := c.dims.Bounds()
	if c.force.F1 != 0 {
		c.f1.SetExternalForce(all, lattice.Along(c.force.Direction, c.force.F1))
	}
	if c.force.F2 != 0 {
		c.f2.SetExternalForce(all, lattice.Along(c.force.Direction, c.force.F2))
	}
}

// Run sets up the controller if needed and drives every stage to
// completion. The summary file is written on success. A controller runs
// once: after an error it is left in PhaseFailed and further calls return
// ErrFailed.
func (c *Controller) Run(ctx context.Context, b Budget) (*Result, error) {
	switch {
	case c.phase == PhaseCompleted:
		return nil, ErrCompleted
	case c.phase > PhaseSetUp:
		return nil, ErrFailed
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	res, err := c.run(ctx, b)
	if err != nil {
		c.phase = PhaseFailed
		c.logger.Warn("run failed", "frames", c.frame, "iterations", c.total, "error", err)
	}
	return res, err
}

func (c *Controller) run(ctx context.Context, b Budget) (*Result, error) {
	if c.phase < PhaseSetUp {
		if err := c.SetUp(); err != nil {
			return nil, err
		}
	}
	defer c.release()

	c.budget = b
	c.monitor = metrics.NewConvergence(2, b.CheckFreq, b.Threshold)
	c.drift = metrics.NewMassDrift()
	c.stability = metrics.NewStability(1e6)
	c.result = &Result{Kind: c.kind.String(), Metrics: make(map[string]float64)}

	if c.plan.equilibrate {
		if err := c.equilibrate(ctx); err != nil {
			return c.result, err
		}
	}

	var err error
	switch c.plan.ramp {
	case rampPressure:
		err = c.pressureCycles(ctx)
	case rampFixed:
		err = c.fixedRamp(ctx)
	case rampCohesion:
		err = c.cohesionRamp(ctx)
	}
	if err != nil {
		return c.result, err
	}

	summary := c.summary()
	if err := c.writer.WriteSummary(summary); err != nil {
		return c.result, fmt.Errorf("failed to write summary: %w", err)
	}

	c.phase = PhaseCompleted
	c.result.Frames = c.frame
	c.result.Iterations = c.total
	c.result.PressureDrops = summary.PressureDrops
	c.result.Metrics[c.monitor.Name()] = c.monitor.Value()
	c.result.Metrics[c.drift.Name()] = c.drift.Value()
	c.result.Metrics[c.stability.Name()] = c.stability.Value()
	if n := len(c.result.Stages); n > 0 {
		c.result.Converged = c.result.Stages[n-1].Converged
	}

	c.logger.Info("run complete", "frames", c.frame, "iterations", c.total, "checks", c.result.Checks)
	c.notify(Event{Kind: EventDone, Result: c.result})
	return c.result, nil
}

// release removes the pressure boundary and detaches the coupling once the
// run is over.
func (c *Controller) release() {
	c.replaceBoundary(nil)
	if c.coupling != nil {
		c.coupling.Detach()
	}
}

func (c *Controller) summary() Summary {
	drops := append([]float64(nil), c.result.PressureDrops...)
	if len(drops) == 0 {
		drops = []float64{c.applied.PressureDrop()}
	}
	return Summary{
		Adhesion:      c.fluids.Adhesion,
		NoFluid:       c.densities.NoFluid,
		PressureDrops: drops,
	}
}

func (c *Controller) beginStage(phase Phase, stage string, cycle, budget int) {
	c.phase = phase
	c.logger.Info("stage started", "stage", stage, "cycle", cycle, "budget", budget)
	c.notify(Event{Kind: EventStage, Stage: stage, Cycle: cycle, Budget: budget})
}

func (c *Controller) equilibrate(ctx context.Context) error {
	c.beginStage(PhaseEquilibrating, StageEquilibration, 0, c.budget.MaxIter)
	c.monitor.Reset()
	c.stageIter = 0
	return c.runLoop(ctx, loopSpec{
		stage:   StageEquilibration,
		budget:  c.budget.MaxIter,
		outputs: c.plan.eqOutputs,
		checks:  checkUntilConverged,
		scale:   1,
	})
}

// pressureCycles steps through the pressure schedule. Cycle n > 0 applies
// entry n; every cycle restarts the convergence baseline and exits early
// once both fluids settle.
func (c *Controller) pressureCycles(ctx context.Context) error {
	c.stageIter = 0
	limit := c.plan.cycleCap(c.budget)
	for n := 0; n < c.pressure.Runs(); n++ {
		c.beginStage(PhaseRamping, StagePressure, n, limit)
		if n > 0 {
			c.applyBoundary(c.pressure[n])
		}
		c.monitor.Reset()
		err := c.runLoop(ctx, loopSpec{
			stage:       StagePressure,
			cycle:       n,
			budget:      limit,
			outputs:     c.plan.rampOutputs,
			checks:      checkEarlyExit,
			scale:       float64(c.dims.Volume()),
			globalClock: true,
			outputFirst: true,
			recordDrop:  true,
			drop:        c.pressure[n].PressureDrop(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// fixedRamp switches to the terminal cross cohesion and, when pressure runs
// are configured, holds the drying boundary for exactly MaxRampIter steps.
func (c *Controller) fixedRamp(ctx context.Context) error {
	g := c.cohesionMatrix().WithCross(c.cohesion.G01)
	c.coupling.SetCohesion(g, c.initialRates())
	if c.pressure.Runs() == 0 {
		c.logger.Info("no pressure runs, skipping ramp")
		return nil
	}

	c.beginStage(PhaseRamping, StageRamp, 0, c.budget.MaxRampIter)
	c.applyBoundary(c.pressure[1])
	c.monitor.Reset()
	c.stageIter = 0
	return c.runLoop(ctx, loopSpec{
		stage:       StageRamp,
		budget:      c.budget.MaxRampIter,
		outputs:     c.plan.rampOutputs,
		checks:      checkRecord,
		scale:       float64(c.dims.Volume()),
		outputFirst: true,
		cohesion:    c.cohesion.G01,
	})
}

// cohesionRamp runs each ramp step for exactly its iteration share.
func (c *Controller) cohesionRamp(ctx context.Context) error {
	if c.pressure.Runs() > 0 {
		c.applyBoundary(c.pressure[1])
	}
	c.monitor.Reset()
	c.stageIter = 0
	base := c.cohesionMatrix()
	for i, step := range c.ramp {
		c.beginStage(PhaseRamping, StageRamp, i, step.Iterations)
		c.coupling.SetCohesion(base.WithCross(step.Cohesion), componentRates(step.Omega[0], step.Omega[1]))
		err := c.runLoop(ctx, loopSpec{
			stage:       StageRamp,
			cycle:       i,
			budget:      step.Iterations,
			outputs:     c.plan.rampOutputs,
			checks:      checkRecord,
			scale:       float64(c.dims.Volume()),
			outputFirst: true,
			cohesion:    step.Cohesion,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) step(ctx context.Context) {
	c.f1.CollideAndStream()
	c.f2.CollideAndStream()
	c.total++
	if c.logger.Enabled(ctx, logging.LevelTrace) {
		c.logger.Log(ctx, logging.LevelTrace, "step", "iteration", c.total)
	}
}

func (c *Controller) averages(scale float64) []float64 {
	return []float64{c.f1.AverageDensity() * scale, c.f2.AverageDensity() * scale}
}

func (c *Controller) writeFrame(stage string, outputs Outputs) error {
	for _, f := range []struct {
		prefix string
		field  lattice.Field
	}{{"f1", c.f1}, {"f2", c.f2}} {
		if err := c.writer.WriteSnapshot(snapshotOf(f.field, f.prefix, c.frame, outputs)); err != nil {
			return &FrameError{Frame: c.frame, Stage: stage, Wrapped: err}
		}
	}
	return nil
}

func snapshotOf(f lattice.Field, prefix string, frame int, outputs Outputs) Snapshot {
	s := Snapshot{Frame: frame, Prefix: prefix, Outputs: outputs}
	if outputs.Has(OutImage) || outputs.Has(OutDump) {
		s.Density = f.Density()
	}
	if outputs.Has(OutVelocity) {
		for a := lattice.AxisX; a <= lattice.AxisZ; a++ {
			s.Velocity[a] = f.VelocityComponent(a)
		}
	}
	return s
}
