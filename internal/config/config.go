// Package config loads and validates run configurations. YAML is the
// primary format; files ending in .ini or .cfg are read as INI.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/schedule"
	"github.com/san-kum/poresim/internal/sim"
)

// Models selectable on the command line.
const (
	ModelMultiphase  = "multiphase"
	ModelPhaseChange = "phasechange"
)

const (
	DefaultMaxIter     = 10000
	DefaultMaxRampIter = 10000
	DefaultOutputFreq  = 1000
	DefaultCheckFreq   = 100
	DefaultThreshold   = 1e-4
	DefaultOmega       = 1.0
	DefaultDensityF1   = 2.0
	DefaultDensityF2   = 2.0
	DefaultNoFluid     = 0.06
)

type Config struct {
	Filenames   Filenames   `yaml:"filenames"`
	Domain      Domain      `yaml:"domain"`
	Flow        Flow        `yaml:"flow"`
	Fluids      Fluids      `yaml:"fluids"`
	Simulations Simulations `yaml:"simulations"`
	Phase       Phase       `yaml:"phase"`
}

type Filenames struct {
	Microstructure  string `yaml:"microstructure"`
	OutputDirectory string `yaml:"output_directory"`
	DensityInput    string `yaml:"density_input,omitempty"`
}

type Domain struct {
	Resolution Resolution `yaml:"resolution"`
	PeriodicBC PeriodicBC `yaml:"periodic_bc"`
}

type Resolution struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

type PeriodicBC struct {
	X bool `yaml:"x"`
	Y bool `yaml:"y"`
	Z bool `yaml:"z"`
}

type Flow struct {
	Type                  string  `yaml:"type"`
	NumberOfPressureSteps int     `yaml:"number_of_pressure_steps"`
	MinThroatRadius       float64 `yaml:"min_throat_radius"`
}

// Fluids holds the two-fluid parameters. Fluid 1 is the wetting fluid.
type Fluids struct {
	Gc         float64 `yaml:"gc"`
	ChangeType string  `yaml:"change_type,omitempty"`
	G00        float64 `yaml:"g00"`
	G01        float64 `yaml:"g01"`
	G11        float64 `yaml:"g11"`
	GMin       float64 `yaml:"gmin"`
	GMax       float64 `yaml:"gmax"`
	Adhesion   float64 `yaml:"f1_fluid_surface_adhesion"`

	OmegaF1     float64 `yaml:"omega_f1"`
	OmegaF2     float64 `yaml:"omega_f2"`
	OmegaChange bool    `yaml:"omega_change"`
	OmegaMinF1  float64 `yaml:"omega_min_f1"`
	OmegaMaxF1  float64 `yaml:"omega_max_f1"`
	OmegaMinF2  float64 `yaml:"omega_min_f2"`
	OmegaMaxF2  float64 `yaml:"omega_max_f2"`
	NumSteps    int     `yaml:"num_steps"`
	ChangeStep  int     `yaml:"change_step"`

	DensityF1         float64 `yaml:"density_f1"`
	DensityF2         float64 `yaml:"density_f2"`
	DensityNoFluid    float64 `yaml:"density_no_fluid"`
	DensityInitInlet  float64 `yaml:"density_init_inlet,omitempty"`
	DensityInitOutlet float64 `yaml:"density_init_outlet,omitempty"`

	ForceF1        float64 `yaml:"force_f1"`
	ForceF2        float64 `yaml:"force_f2"`
	ForceDirection string  `yaml:"force_direction"`
}

type Simulations struct {
	MaxIterations          int     `yaml:"max_iterations"`
	MaxPressureIterations  int     `yaml:"max_pressure_iterations"`
	OutputFrequency        int     `yaml:"output_frequency"`
	ConvergeCheckFrequency int     `yaml:"converge_check_frequency"`
	ConvergeCriterion      float64 `yaml:"converge_criterion"`
}

// Phase holds the single-fluid phase-change parameters.
type Phase struct {
	RelaxationOmega float64 `yaml:"relaxation_omega"`
	CohesionGc      float64 `yaml:"cohesion_gc"`
	AdhesionGfs     float64 `yaml:"adhesion_gfs"`
	Rho0            float64 `yaml:"rho_0"`
	Psi0            float64 `yaml:"psi_0"`
	ExternalForce   float64 `yaml:"external_force"`
}

func DefaultConfig() *Config {
	return &Config{
		Filenames: Filenames{OutputDirectory: "tmp"},
		Domain: Domain{
			PeriodicBC: PeriodicBC{X: true},
		},
		Flow: Flow{Type: "imbibition", MinThroatRadius: 1},
		Fluids: Fluids{
			ChangeType:     "range",
			OmegaF1:        DefaultOmega,
			OmegaF2:        DefaultOmega,
			DensityF1:      DefaultDensityF1,
			DensityF2:      DefaultDensityF2,
			DensityNoFluid: DefaultNoFluid,
			ForceDirection: "x",
		},
		Simulations: Simulations{
			MaxIterations:          DefaultMaxIter,
			MaxPressureIterations:  DefaultMaxRampIter,
			OutputFrequency:        DefaultOutputFreq,
			ConvergeCheckFrequency: DefaultCheckFreq,
			ConvergeCriterion:      DefaultThreshold,
		},
		Phase: Phase{
			RelaxationOmega: DefaultOmega,
			Rho0:            1,
			Psi0:            1,
		},
	}
}

// Load reads path over DefaultConfig. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isINI(path) {
		return parseINI(data)
	}
	return Parse(data)
}

// Parse decodes a YAML document over DefaultConfig.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isINI(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		return true
	}
	return false
}

// Kind parses flow.type.
func (c *Config) Kind() (sim.Kind, error) {
	return sim.ParseKind(c.Flow.Type)
}

func (c *Config) Dims() lattice.Dims {
	r := c.Domain.Resolution
	return lattice.Dims{NX: r.X, NY: r.Y, NZ: r.Z}
}

func (c *Config) Periodic() sim.Periodic {
	p := c.Domain.PeriodicBC
	return sim.Periodic{X: p.X, Y: p.Y, Z: p.Z}
}

func (c *Config) FileNames() sim.FileNames {
	return sim.FileNames{
		Geometry:  c.Filenames.Microstructure,
		OutputDir: c.Filenames.OutputDirectory,
		Density:   c.Filenames.DensityInput,
	}
}

func (c *Config) Budget() sim.Budget {
	s := c.Simulations
	return sim.Budget{
		MaxIter:     s.MaxIterations,
		MaxRampIter: s.MaxPressureIterations,
		CheckFreq:   s.ConvergeCheckFrequency,
		OutputFreq:  s.OutputFrequency,
		Threshold:   s.ConvergeCriterion,
	}
}

func (c *Config) Densities() sim.Densities {
	f := c.Fluids
	return sim.Densities{
		F1:         f.DensityF1,
		F2:         f.DensityF2,
		InitInlet:  f.DensityInitInlet,
		InitOutlet: f.DensityInitOutlet,
		NoFluid:    f.DensityNoFluid,
	}
}

func (c *Config) FluidParams() sim.Fluids {
	f := c.Fluids
	return sim.Fluids{OmegaF1: f.OmegaF1, OmegaF2: f.OmegaF2, Cohesion: f.Gc, Adhesion: f.Adhesion}
}

func (c *Config) Cohesion() sim.Cohesion {
	f := c.Fluids
	return sim.Cohesion{G00: f.G00, G01: f.G01, G11: f.G11}
}

// ForceVector maps the body forces onto force_direction.
func (c *Config) ForceVector() (sim.Force, error) {
	dir := c.Fluids.ForceDirection
	if dir == "" {
		dir = "x"
	}
	axis, err := sim.ParseAxis(dir)
	if err != nil {
		return sim.Force{}, &Error{Key: "fluids.force_direction", Reason: fmt.Sprintf("must be x, y or z, got %q", dir)}
	}
	return sim.Force{F1: c.Fluids.ForceF1, F2: c.Fluids.ForceF2, Direction: axis}, nil
}

// CohesionSpec describes the drying-rate cohesion ramp. In step mode Steps
// carries change_step.
func (c *Config) CohesionSpec() (schedule.CohesionSpec, error) {
	mode, err := schedule.ParseMode(c.Fluids.ChangeType)
	if err != nil {
		return schedule.CohesionSpec{}, err
	}
	steps := c.Fluids.NumSteps
	if mode == schedule.ModeStep {
		steps = c.Fluids.ChangeStep
	}
	return schedule.CohesionSpec{Mode: mode, Min: c.Fluids.GMin, Max: c.Fluids.GMax, Steps: steps}, nil
}

// ViscositySpec orders relaxation rates as [F1, F2].
func (c *Config) ViscositySpec() schedule.ViscositySpec {
	f := c.Fluids
	return schedule.ViscositySpec{
		Enabled:  f.OmegaChange,
		Constant: lattice.RelaxationRates{f.OmegaF1, f.OmegaF2},
		Min:      lattice.RelaxationRates{f.OmegaMinF1, f.OmegaMinF2},
		Max:      lattice.RelaxationRates{f.OmegaMaxF1, f.OmegaMaxF2},
	}
}

// Ramp builds the drying-rate schedule over max_pressure_iterations.
func (c *Config) Ramp() (schedule.Ramp, error) {
	spec, err := c.CohesionSpec()
	if err != nil {
		return nil, err
	}
	return schedule.BuildRamp(spec, c.ViscositySpec(), c.Simulations.MaxPressureIterations)
}

// PressureSchedule previews the boundary densities a controller of this
// configuration would build at setup.
func (c *Config) PressureSchedule() (schedule.Pressure, error) {
	kind, err := c.Kind()
	if err != nil {
		return nil, err
	}
	return sim.PressureSchedule(kind, c.Densities(), c.FluidParams(),
		c.Flow.NumberOfPressureSteps, c.Flow.MinThroatRadius), nil
}

func (c *Config) SingleFluid() sim.SingleFluid {
	return sim.SingleFluid{Omega: c.Phase.RelaxationOmega, Cohesion: c.Phase.CohesionGc, Adhesion: c.Phase.AdhesionGfs}
}

func (c *Config) Potential() sim.Potential {
	return sim.Potential{Rho0: c.Phase.Rho0, Psi0: c.Phase.Psi0}
}
