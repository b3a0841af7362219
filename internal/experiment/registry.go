package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/san-kum/poresim/internal/config"
	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/sim"
)

// Runner is the surface shared by the multiphase and single-fluid
// controllers.
type Runner interface {
	SetWriter(w sim.Writer) error
	SetLogger(l *slog.Logger)
	AddObserver(o sim.Observer)
	SetUp() error
	Run(ctx context.Context, b sim.Budget) (*sim.Result, error)
}

var (
	_ Runner = (*sim.Controller)(nil)
	_ Runner = (*sim.SingleComponent)(nil)
)

// Builder turns a validated configuration into a configured runner.
type Builder func(cfg *config.Config, coupler Coupler) (Runner, error)

// Coupler creates fields and couples them. lattice.Solver is the only
// implementation shipped.
type Coupler interface {
	lattice.Coupler
	NewField(d lattice.Dims, omega float64) *lattice.Grid
}

type Registry struct {
	models map[string]Builder
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]Builder)}
	r.models[config.ModelMultiphase] = buildMultiphase
	r.models[config.ModelPhaseChange] = buildPhaseChange
	return r
}

// Register adds or replaces a model builder.
func (r *Registry) Register(name string, b Builder) {
	r.models[name] = b
}

func (r *Registry) Build(name string, cfg *config.Config, coupler Coupler) (Runner, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(cfg, coupler)
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListFlows returns the flow.type values accepted by the multiphase model.
func ListFlows() []string {
	kinds := sim.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

// setters applies configuration calls in order and stops at the first error.
func setters(calls ...func() error) error {
	for _, call := range calls {
		if err := call(); err != nil {
			return err
		}
	}
	return nil
}

func buildMultiphase(cfg *config.Config, coupler Coupler) (Runner, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}
	force, err := cfg.ForceVector()
	if err != nil {
		return nil, err
	}

	dims := cfg.Dims()
	f1 := coupler.NewField(dims, cfg.Fluids.OmegaF1)
	f2 := coupler.NewField(dims, cfg.Fluids.OmegaF2)
	ctrl := sim.New(kind, f1, f2, geometry.New(dims), coupler)

	err = setters(
		func() error { return ctrl.SetDomainSize(dims) },
		func() error { return ctrl.SetPeriodic(cfg.Periodic()) },
		func() error { return ctrl.SetFileNames(cfg.FileNames()) },
		func() error { return ctrl.SetDensities(cfg.Densities()) },
		func() error { return ctrl.SetFluids(cfg.FluidParams()) },
		func() error { return ctrl.SetCohesion(cfg.Cohesion()) },
		func() error { return ctrl.SetExternalForce(force) },
		func() error {
			return ctrl.SetPressureSteps(cfg.Flow.NumberOfPressureSteps, cfg.Flow.MinThroatRadius)
		},
	)
	if err != nil {
		return nil, err
	}

	if kind == sim.DryingRate {
		ramp, err := cfg.Ramp()
		if err != nil {
			return nil, fmt.Errorf("failed to build ramp: %w", err)
		}
		if err := ctrl.SetRamp(ramp); err != nil {
			return nil, err
		}
	}
	return ctrl, nil
}

func buildPhaseChange(cfg *config.Config, coupler Coupler) (Runner, error) {
	dims := cfg.Dims()
	field := coupler.NewField(dims, cfg.Phase.RelaxationOmega)
	single := sim.NewSingle(field, geometry.New(dims), geometry.NewDensityField(dims), coupler)

	err := setters(
		func() error { return single.SetFileNames(cfg.FileNames()) },
		func() error { return single.SetPeriodic(cfg.Periodic()) },
		func() error { return single.SetFluid(cfg.SingleFluid()) },
		func() error { return single.SetPotential(cfg.Potential()) },
		func() error { return single.SetExternalForce(cfg.Phase.ExternalForce) },
	)
	if err != nil {
		return nil, err
	}
	return single, nil
}
