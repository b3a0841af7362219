package config

import "sort"

// Presets are starting points per flow type, each a function so callers get
// a fresh copy they can edit.
var Presets = map[string]map[string]func() *Config{
	"imbibition": {
		"small": func() *Config {
			c := base(48, 32, 32)
			c.Flow.Type = "imbibition"
			c.Fluids.Gc = 0.9
			c.Fluids.Adhesion = -0.4
			c.Fluids.ForceF1 = 1e-5
			return c
		},
		"gravity": func() *Config {
			c := base(64, 48, 48)
			c.Flow.Type = "imbibition"
			c.Fluids.Gc = 0.9
			c.Fluids.Adhesion = -0.4
			c.Fluids.ForceF1 = 1e-4
			c.Fluids.ForceF2 = 1e-4
			c.Fluids.ForceDirection = "z"
			return c
		},
	},
	"drainage": {
		"small": func() *Config {
			c := base(48, 32, 32)
			c.Flow.Type = "drainage"
			c.Flow.NumberOfPressureSteps = 10
			c.Flow.MinThroatRadius = 2
			c.Fluids.Gc = 0.9
			c.Fluids.Adhesion = -0.4
			return c
		},
		"fine": func() *Config {
			c := base(96, 64, 64)
			c.Flow.Type = "drainage"
			c.Flow.NumberOfPressureSteps = 40
			c.Flow.MinThroatRadius = 1
			c.Fluids.Gc = 0.9
			c.Fluids.Adhesion = -0.4
			c.Simulations.MaxIterations = 50000
			return c
		},
	},
	"runout": {
		"small": func() *Config {
			c := base(48, 32, 32)
			c.Flow.Type = "runout"
			c.Flow.NumberOfPressureSteps = 10
			c.Flow.MinThroatRadius = 2
			c.Fluids.Gc = 0.9
			c.Fluids.Adhesion = -0.4
			c.Simulations.MaxPressureIterations = 20000
			return c
		},
	},
	"drying": {
		"small": func() *Config {
			c := base(48, 32, 32)
			c.Flow.Type = "drying"
			c.Flow.NumberOfPressureSteps = 5
			c.Fluids.Gc = 0.9
			c.Fluids.DensityF2 = 1.4
			return c
		},
	},
	"drying-rate": {
		"range": func() *Config {
			c := base(48, 32, 32)
			c.Flow.Type = "drying-rate"
			c.Fluids.ChangeType = "range"
			c.Fluids.G00, c.Fluids.G01, c.Fluids.G11 = 0, 0.9, 0
			c.Fluids.GMin, c.Fluids.GMax = 0.6, 1.2
			c.Fluids.NumSteps = 6
			c.Simulations.MaxPressureIterations = 60000
			return c
		},
		"step": func() *Config {
			c := base(48, 32, 32)
			c.Flow.Type = "drying-rate"
			c.Fluids.ChangeType = "step"
			c.Fluids.G00, c.Fluids.G01, c.Fluids.G11 = 0, 0.9, 0
			c.Fluids.GMin, c.Fluids.GMax = 0.6, 1.2
			c.Fluids.ChangeStep = 20000
			c.Fluids.OmegaChange = true
			c.Fluids.OmegaMinF1, c.Fluids.OmegaMaxF1 = 0.6, 1.2
			c.Fluids.OmegaMinF2, c.Fluids.OmegaMaxF2 = 0.8, 1.0
			c.Simulations.MaxPressureIterations = 50000
			return c
		},
	},
}

func base(nx, ny, nz int) *Config {
	c := DefaultConfig()
	c.Filenames.Microstructure = "input/geometry.dat"
	c.Filenames.OutputDirectory = "tmp"
	c.Domain.Resolution = Resolution{X: nx, Y: ny, Z: nz}
	return c
}

func GetPreset(flow, preset string) *Config {
	flowPresets, ok := Presets[flow]
	if !ok {
		return nil
	}
	build, ok := flowPresets[preset]
	if !ok {
		return nil
	}
	return build()
}

// ListPresets returns the preset names of flow in sorted order.
func ListPresets(flow string) []string {
	flowPresets, ok := Presets[flow]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(flowPresets))
	for name := range flowPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
