package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/sim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Flow.Type != "imbibition" {
		t.Errorf("expected flow imbibition, got %s", cfg.Flow.Type)
	}
	if !cfg.Domain.PeriodicBC.X || cfg.Domain.PeriodicBC.Y {
		t.Errorf("expected periodic x only, got %+v", cfg.Domain.PeriodicBC)
	}
	if cfg.Simulations.ConvergeCheckFrequency <= 0 {
		t.Error("check frequency should be positive")
	}
}

const sampleYAML = `
filenames:
  microstructure: geom.dat
  output_directory: out
domain:
  resolution: {x: 10, y: 6, z: 4}
  periodic_bc: {x: false, y: true, z: false}
flow:
  type: drainage
  number_of_pressure_steps: 4
  min_throat_radius: 2
fluids:
  gc: 0.9
  f1_fluid_surface_adhesion: -0.4
  density_f1: 2.0
  density_f2: 1.4
  force_direction: z
simulations:
  max_iterations: 500
  converge_check_frequency: 50
`

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := cfg.Dims(); got != (lattice.Dims{NX: 10, NY: 6, NZ: 4}) {
		t.Errorf("unexpected dims %+v", got)
	}
	if p := cfg.Periodic(); p.X || !p.Y || p.Z {
		t.Errorf("unexpected periodicity %+v", p)
	}
	kind, err := cfg.Kind()
	if err != nil || kind != sim.Drainage {
		t.Errorf("expected drainage, got %v (%v)", kind, err)
	}
	if cfg.Budget().MaxIter != 500 || cfg.Budget().OutputFreq != DefaultOutputFreq {
		t.Errorf("unexpected budget %+v", cfg.Budget())
	}
	if cfg.Densities().NoFluid != DefaultNoFluid {
		t.Errorf("default no-fluid density lost: %+v", cfg.Densities())
	}
	if err := cfg.Validate(ModelMultiphase); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("fluids:\n  viscosity: 3\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

const sampleINI = `
[filenames]
microstructure = geom.dat
output-directory = out

[domain]
x = 10
y = 6
z = 4
periodic-y = true

[flow]
type = drying-rate

[fluids]
change-type = step
gmin = 0.6
gmax = 1.2
change-step = 20
omega-f1 = 1.2
density-f2 = 1.4

[simulations]
max-pressure-iterations = 50
`

func TestParseINI(t *testing.T) {
	cfg, err := parseINI([]byte(sampleINI))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Filenames.OutputDirectory != "out" || cfg.Domain.Resolution.Y != 6 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.Domain.PeriodicBC.X || !cfg.Domain.PeriodicBC.Y {
		t.Errorf("expected default periodic x kept and y set, got %+v", cfg.Domain.PeriodicBC)
	}
	if cfg.Fluids.OmegaF2 != DefaultOmega || cfg.Fluids.DensityF1 != DefaultDensityF1 {
		t.Errorf("defaults lost: %+v", cfg.Fluids)
	}

	ramp, err := cfg.Ramp()
	if err != nil {
		t.Fatalf("ramp failed: %v", err)
	}
	if len(ramp) != 2 || ramp[0].Iterations != 20 || ramp[1].Iterations != 30 {
		t.Errorf("unexpected ramp %+v", ramp)
	}
	if ramp[0].Omega != (lattice.RelaxationRates{1.2, DefaultOmega}) {
		t.Errorf("expected constant rates ordered F1, F2, got %v", ramp[0].Omega)
	}
}

func TestParseINIRejectsUnknownKeys(t *testing.T) {
	if _, err := parseINI([]byte("[fluids]\nviscosity = 3\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "run.yaml")
	iniPath := filepath.Join(dir, "run.ini")
	if err := os.WriteFile(yamlPath, []byte(sampleYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(iniPath, []byte(sampleINI), 0644); err != nil {
		t.Fatal(err)
	}

	y, err := Load(yamlPath)
	if err != nil || y.Flow.Type != "drainage" {
		t.Errorf("yaml load: %v %+v", err, y)
	}
	i, err := Load(iniPath)
	if err != nil || i.Flow.Type != "drying-rate" {
		t.Errorf("ini load: %v %+v", err, i)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("drying-rate", "step")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if back.Fluids != cfg.Fluids || back.Simulations != cfg.Simulations || back.Domain != cfg.Domain {
		t.Errorf("round trip mismatch:\n%+v\n%+v", cfg, back)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := GetPreset("drainage", "small")
		return c
	}

	tests := []struct {
		name  string
		model string
		edit  func(c *Config)
		key   string
	}{
		{"missing geometry", ModelMultiphase, func(c *Config) { c.Filenames.Microstructure = "" }, "filenames.microstructure"},
		{"zero resolution", ModelMultiphase, func(c *Config) { c.Domain.Resolution.Z = 0 }, "domain.resolution.z"},
		{"unknown flow", ModelMultiphase, func(c *Config) { c.Flow.Type = "percolation" }, "flow.type"},
		{"unstable omega", ModelMultiphase, func(c *Config) { c.Fluids.OmegaF2 = 2 }, "fluids.omega_f2"},
		{"bad force axis", ModelMultiphase, func(c *Config) { c.Fluids.ForceDirection = "w" }, "fluids.force_direction"},
		{"zero check freq", ModelMultiphase, func(c *Config) { c.Simulations.ConvergeCheckFrequency = 0 }, "simulations.converge_check_frequency"},
		{"zero throat radius", ModelMultiphase, func(c *Config) { c.Flow.MinThroatRadius = 0 }, "flow.min_throat_radius"},
		{"no-fluid equals inlet", ModelMultiphase, func(c *Config) { c.Fluids.DensityNoFluid = c.Fluids.DensityF1 }, "fluids.density_no_fluid"},
		{"bad change type", ModelMultiphase, func(c *Config) {
			c.Flow.Type = "drying-rate"
			c.Fluids.ChangeType = "linear"
		}, "fluids.change_type"},
		{"range without steps", ModelMultiphase, func(c *Config) {
			c.Flow.Type = "drying-rate"
			c.Fluids.NumSteps = 0
		}, "fluids.num_steps"},
		{"switch too late", ModelMultiphase, func(c *Config) {
			c.Flow.Type = "drying-rate"
			c.Fluids.ChangeType = "step"
			c.Fluids.ChangeStep = c.Simulations.MaxPressureIterations + 1
		}, "fluids.change_step"},
		{"missing density input", ModelPhaseChange, func(c *Config) { c.Filenames.DensityInput = "" }, "filenames.density_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.edit(c)
			err := c.Validate(tt.model)
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if ce.Key != tt.key {
				t.Errorf("expected key %s, got %s (%v)", tt.key, ce.Key, err)
			}
		})
	}
}

func TestValidateUnknownModel(t *testing.T) {
	err := DefaultConfig().Validate("lattice-gas")
	if !IsConfigError(err) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestValidatePhaseChange(t *testing.T) {
	c := base(8, 8, 8)
	c.Filenames.DensityInput = "rho.dat"
	c.Phase.CohesionGc = -5
	if err := c.Validate(ModelPhaseChange); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
	if c.SingleFluid().Cohesion != -5 || c.Potential().Rho0 != 1 {
		t.Errorf("unexpected single-fluid params %+v %+v", c.SingleFluid(), c.Potential())
	}
}

func TestPresetsValidate(t *testing.T) {
	for flow := range Presets {
		for _, name := range ListPresets(flow) {
			t.Run(flow+"/"+name, func(t *testing.T) {
				if err := GetPreset(flow, name).Validate(ModelMultiphase); err != nil {
					t.Errorf("preset invalid: %v", err)
				}
			})
		}
	}
}

func TestGetPresetReturnsCopy(t *testing.T) {
	a := GetPreset("drainage", "small")
	a.Flow.NumberOfPressureSteps = 99
	b := GetPreset("drainage", "small")
	if b.Flow.NumberOfPressureSteps == 99 {
		t.Error("preset mutated through a previous copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("drainage", "nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if GetPreset("nonexistent", "small") != nil {
		t.Error("expected nil for nonexistent flow")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets("drying-rate")
	if len(names) != 2 || names[0] != "range" || names[1] != "step" {
		t.Errorf("expected sorted [range step], got %v", names)
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent flow")
	}
}

func TestForceVector(t *testing.T) {
	c := DefaultConfig()
	c.Fluids.ForceF1 = 1e-4
	c.Fluids.ForceDirection = "y"
	f, err := c.ForceVector()
	if err != nil {
		t.Fatal(err)
	}
	if f.Direction != lattice.AxisY || f.F1 != 1e-4 {
		t.Errorf("unexpected force %+v", f)
	}
}

func TestPressureSchedulePreview(t *testing.T) {
	c := GetPreset("drainage", "small")
	p, err := c.PressureSchedule()
	if err != nil {
		t.Fatal(err)
	}
	if p.Runs() != c.Flow.NumberOfPressureSteps {
		t.Errorf("expected %d runs, got %d", c.Flow.NumberOfPressureSteps, p.Runs())
	}

	c.Flow.Type = "imbibition"
	p, _ = c.PressureSchedule()
	if len(p) != 1 {
		t.Errorf("imbibition should have a single boundary, got %d", len(p))
	}
}
