package config

import (
	"errors"
	"fmt"

	"github.com/san-kum/poresim/internal/schedule"
	"github.com/san-kum/poresim/internal/sim"
)

// Error reports an invalid configuration value.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// IsConfigError reports whether err is or wraps an *Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

func invalid(key, format string, args ...any) *Error {
	return &Error{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks c for the given model and returns the first problem.
func (c *Config) Validate(model string) error {
	switch model {
	case ModelMultiphase:
		return c.validateMultiphase()
	case ModelPhaseChange:
		return c.validatePhaseChange()
	}
	return invalid("", "unknown model %q", model)
}

func (c *Config) validateCommon() error {
	if c.Filenames.Microstructure == "" {
		return invalid("filenames.microstructure", "is required")
	}
	if c.Filenames.OutputDirectory == "" {
		return invalid("filenames.output_directory", "is required")
	}
	r := c.Domain.Resolution
	for _, d := range []struct {
		key string
		n   int
	}{{"x", r.X}, {"y", r.Y}, {"z", r.Z}} {
		if d.n <= 0 {
			return invalid("domain.resolution."+d.key, "must be positive, got %d", d.n)
		}
	}

	s := c.Simulations
	if s.MaxIterations < 0 {
		return invalid("simulations.max_iterations", "must not be negative, got %d", s.MaxIterations)
	}
	if s.OutputFrequency <= 0 {
		return invalid("simulations.output_frequency", "must be positive, got %d", s.OutputFrequency)
	}
	if s.ConvergeCheckFrequency <= 0 {
		return invalid("simulations.converge_check_frequency", "must be positive, got %d", s.ConvergeCheckFrequency)
	}
	if s.ConvergeCriterion <= 0 {
		return invalid("simulations.converge_criterion", "must be positive, got %g", s.ConvergeCriterion)
	}
	return nil
}

func (c *Config) validateMultiphase() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	kind, err := c.Kind()
	if err != nil {
		return invalid("flow.type", "unknown flow type %q", c.Flow.Type)
	}

	f := c.Fluids
	if err := checkOmega("fluids.omega_f1", f.OmegaF1); err != nil {
		return err
	}
	if err := checkOmega("fluids.omega_f2", f.OmegaF2); err != nil {
		return err
	}
	if f.DensityF1 <= 0 {
		return invalid("fluids.density_f1", "must be positive, got %g", f.DensityF1)
	}
	if f.DensityF2 <= 0 {
		return invalid("fluids.density_f2", "must be positive, got %g", f.DensityF2)
	}
	if f.DensityNoFluid < 0 {
		return invalid("fluids.density_no_fluid", "must not be negative, got %g", f.DensityNoFluid)
	}
	if _, err := c.ForceVector(); err != nil {
		return err
	}
	if c.Simulations.MaxPressureIterations < 0 {
		return invalid("simulations.max_pressure_iterations", "must not be negative, got %d", c.Simulations.MaxPressureIterations)
	}

	if kind == sim.Imbibition {
		return nil
	}
	if c.Flow.NumberOfPressureSteps < 0 {
		return invalid("flow.number_of_pressure_steps", "must not be negative, got %d", c.Flow.NumberOfPressureSteps)
	}
	if c.Flow.MinThroatRadius <= 0 {
		return invalid("flow.min_throat_radius", "must be positive, got %g", c.Flow.MinThroatRadius)
	}
	inlet := f.DensityInitInlet
	if inlet == 0 {
		inlet = f.DensityF1
	}
	if inlet == f.DensityNoFluid {
		return invalid("fluids.density_no_fluid", "must differ from the inlet density")
	}
	if (kind == sim.Drainage || kind == sim.RunOut) && f.Gc == 0 {
		return invalid("fluids.gc", "must be non-zero for %s", kind)
	}

	if kind != sim.DryingRate {
		return nil
	}
	spec, err := c.CohesionSpec()
	if err != nil {
		return invalid("fluids.change_type", "must be range or step, got %q", f.ChangeType)
	}
	if spec.Mode == schedule.ModeRange && f.NumSteps <= 0 {
		return invalid("fluids.num_steps", "must be positive in range mode, got %d", f.NumSteps)
	}
	if spec.Mode == schedule.ModeStep && (f.ChangeStep < 0 || f.ChangeStep > c.Simulations.MaxPressureIterations) {
		return invalid("fluids.change_step", "must be within [0, %d], got %d", c.Simulations.MaxPressureIterations, f.ChangeStep)
	}
	if f.OmegaChange {
		for _, o := range []struct {
			key string
			v   float64
		}{
			{"fluids.omega_min_f1", f.OmegaMinF1},
			{"fluids.omega_max_f1", f.OmegaMaxF1},
			{"fluids.omega_min_f2", f.OmegaMinF2},
			{"fluids.omega_max_f2", f.OmegaMaxF2},
		} {
			if err := checkOmega(o.key, o.v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) validatePhaseChange() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.Filenames.DensityInput == "" {
		return invalid("filenames.density_input", "is required")
	}
	if err := checkOmega("phase.relaxation_omega", c.Phase.RelaxationOmega); err != nil {
		return err
	}
	if c.Phase.Rho0 <= 0 {
		return invalid("phase.rho_0", "must be positive, got %g", c.Phase.Rho0)
	}
	return nil
}

// checkOmega keeps BGK relaxation inside its stable range.
func checkOmega(key string, omega float64) error {
	if omega <= 0 || omega >= 2 {
		return invalid(key, "must be in (0, 2), got %g", omega)
	}
	return nil
}
