package config

import (
	"gopkg.in/gcfg.v1"
)

// iniFile mirrors Config as flat INI sections with dashed keys:
//
//	[filenames]
//	microstructure = geom.dat
//	output-directory = out/
//
//	[domain]
//	x = 64
//	periodic-y = true
type iniFile struct {
	Filenames struct {
		Microstructure  string
		OutputDirectory string `gcfg:"output-directory"`
		DensityInput    string `gcfg:"density-input"`
	}
	Domain struct {
		X, Y, Z   int
		PeriodicX bool `gcfg:"periodic-x"`
		PeriodicY bool `gcfg:"periodic-y"`
		PeriodicZ bool `gcfg:"periodic-z"`
	}
	Flow struct {
		Type                  string
		NumberOfPressureSteps int     `gcfg:"number-of-pressure-steps"`
		MinThroatRadius       float64 `gcfg:"min-throat-radius"`
	}
	Fluids struct {
		Gc                float64
		ChangeType        string `gcfg:"change-type"`
		G00, G01, G11     float64
		GMin              float64 `gcfg:"gmin"`
		GMax              float64 `gcfg:"gmax"`
		Adhesion          float64 `gcfg:"f1-fluid-surface-adhesion"`
		OmegaF1           float64 `gcfg:"omega-f1"`
		OmegaF2           float64 `gcfg:"omega-f2"`
		OmegaChange       bool    `gcfg:"omega-change"`
		OmegaMinF1        float64 `gcfg:"omega-min-f1"`
		OmegaMaxF1        float64 `gcfg:"omega-max-f1"`
		OmegaMinF2        float64 `gcfg:"omega-min-f2"`
		OmegaMaxF2        float64 `gcfg:"omega-max-f2"`
		NumSteps          int     `gcfg:"num-steps"`
		ChangeStep        int     `gcfg:"change-step"`
		DensityF1         float64 `gcfg:"density-f1"`
		DensityF2         float64 `gcfg:"density-f2"`
		DensityNoFluid    float64 `gcfg:"density-no-fluid"`
		DensityInitInlet  float64 `gcfg:"density-init-inlet"`
		DensityInitOutlet float64 `gcfg:"density-init-outlet"`
		ForceF1           float64 `gcfg:"force-f1"`
		ForceF2           float64 `gcfg:"force-f2"`
		ForceDirection    string  `gcfg:"force-direction"`
	}
	Simulations struct {
		MaxIterations          int     `gcfg:"max-iterations"`
		MaxPressureIterations  int     `gcfg:"max-pressure-iterations"`
		OutputFrequency        int     `gcfg:"output-frequency"`
		ConvergeCheckFrequency int     `gcfg:"converge-check-frequency"`
		ConvergeCriterion      float64 `gcfg:"converge-criterion"`
	}
	Phase struct {
		RelaxationOmega float64 `gcfg:"relaxation-omega"`
		CohesionGc      float64 `gcfg:"cohesion-gc"`
		AdhesionGfs     float64 `gcfg:"adhesion-gfs"`
		Rho0            float64 `gcfg:"rho-0"`
		Psi0            float64 `gcfg:"psi-0"`
		ExternalForce   float64 `gcfg:"external-force"`
	}
}

// parseINI reads an INI document over DefaultConfig. Unknown sections and
// keys are rejected by gcfg.
func parseINI(data []byte) (*Config, error) {
	ini := toINI(DefaultConfig())
	if err := gcfg.ReadStringInto(ini, string(data)); err != nil {
		return nil, err
	}
	return ini.config(), nil
}

func toINI(c *Config) *iniFile {
	var w iniFile
	w.Filenames.Microstructure = c.Filenames.Microstructure
	w.Filenames.OutputDirectory = c.Filenames.OutputDirectory
	w.Filenames.DensityInput = c.Filenames.DensityInput

	r, p := c.Domain.Resolution, c.Domain.PeriodicBC
	w.Domain.X, w.Domain.Y, w.Domain.Z = r.X, r.Y, r.Z
	w.Domain.PeriodicX, w.Domain.PeriodicY, w.Domain.PeriodicZ = p.X, p.Y, p.Z

	w.Flow.Type = c.Flow.Type
	w.Flow.NumberOfPressureSteps = c.Flow.NumberOfPressureSteps
	w.Flow.MinThroatRadius = c.Flow.MinThroatRadius

	f := c.Fluids
	w.Fluids.Gc, w.Fluids.ChangeType = f.Gc, f.ChangeType
	w.Fluids.G00, w.Fluids.G01, w.Fluids.G11 = f.G00, f.G01, f.G11
	w.Fluids.GMin, w.Fluids.GMax, w.Fluids.Adhesion = f.GMin, f.GMax, f.Adhesion
	w.Fluids.OmegaF1, w.Fluids.OmegaF2, w.Fluids.OmegaChange = f.OmegaF1, f.OmegaF2, f.OmegaChange
	w.Fluids.OmegaMinF1, w.Fluids.OmegaMaxF1 = f.OmegaMinF1, f.OmegaMaxF1
	w.Fluids.OmegaMinF2, w.Fluids.OmegaMaxF2 = f.OmegaMinF2, f.OmegaMaxF2
	w.Fluids.NumSteps, w.Fluids.ChangeStep = f.NumSteps, f.ChangeStep
	w.Fluids.DensityF1, w.Fluids.DensityF2, w.Fluids.DensityNoFluid = f.DensityF1, f.DensityF2, f.DensityNoFluid
	w.Fluids.DensityInitInlet, w.Fluids.DensityInitOutlet = f.DensityInitInlet, f.DensityInitOutlet
	w.Fluids.ForceF1, w.Fluids.ForceF2, w.Fluids.ForceDirection = f.ForceF1, f.ForceF2, f.ForceDirection

	w.Simulations.MaxIterations = c.Simulations.MaxIterations
	w.Simulations.MaxPressureIterations = c.Simulations.MaxPressureIterations
	w.Simulations.OutputFrequency = c.Simulations.OutputFrequency
	w.Simulations.ConvergeCheckFrequency = c.Simulations.ConvergeCheckFrequency
	w.Simulations.ConvergeCriterion = c.Simulations.ConvergeCriterion

	w.Phase.RelaxationOmega, w.Phase.CohesionGc = c.Phase.RelaxationOmega, c.Phase.CohesionGc
	w.Phase.AdhesionGfs, w.Phase.ExternalForce = c.Phase.AdhesionGfs, c.Phase.ExternalForce
	w.Phase.Rho0, w.Phase.Psi0 = c.Phase.Rho0, c.Phase.Psi0
	return &w
}

func (w *iniFile) config() *Config {
	c := &Config{}
	c.Filenames = Filenames{
		Microstructure:  w.Filenames.Microstructure,
		OutputDirectory: w.Filenames.OutputDirectory,
		DensityInput:    w.Filenames.DensityInput,
	}
	c.Domain = Domain{
		Resolution: Resolution{X: w.Domain.X, Y: w.Domain.Y, Z: w.Domain.Z},
		PeriodicBC: PeriodicBC{X: w.Domain.PeriodicX, Y: w.Domain.PeriodicY, Z: w.Domain.PeriodicZ},
	}
	c.Flow = Flow{
		Type:                  w.Flow.Type,
		NumberOfPressureSteps: w.Flow.NumberOfPressureSteps,
		MinThroatRadius:       w.Flow.MinThroatRadius,
	}

	f := w.Fluids
	c.Fluids = Fluids{
		Gc: f.Gc, ChangeType: f.ChangeType,
		G00: f.G00, G01: f.G01, G11: f.G11,
		GMin: f.GMin, GMax: f.GMax, Adhesion: f.Adhesion,
		OmegaF1: f.OmegaF1, OmegaF2: f.OmegaF2, OmegaChange: f.OmegaChange,
		OmegaMinF1: f.OmegaMinF1, OmegaMaxF1: f.OmegaMaxF1,
		OmegaMinF2: f.OmegaMinF2, OmegaMaxF2: f.OmegaMaxF2,
		NumSteps: f.NumSteps, ChangeStep: f.ChangeStep,
		DensityF1: f.DensityF1, DensityF2: f.DensityF2, DensityNoFluid: f.DensityNoFluid,
		DensityInitInlet: f.DensityInitInlet, DensityInitOutlet: f.DensityInitOutlet,
		ForceF1: f.ForceF1, ForceF2: f.ForceF2, ForceDirection: f.ForceDirection,
	}

	s := w.Simulations
	c.Simulations = Simulations{
		MaxIterations:          s.MaxIterations,
		MaxPressureIterations:  s.MaxPressureIterations,
		OutputFrequency:        s.OutputFrequency,
		ConvergeCheckFrequency: s.ConvergeCheckFrequency,
		ConvergeCriterion:      s.ConvergeCriterion,
	}

	p := w.Phase
	c.Phase = Phase{
		RelaxationOmega: p.RelaxationOmega,
		CohesionGc:      p.CohesionGc,
		AdhesionGfs:     p.AdhesionGfs,
		Rho0:            p.Rho0,
		Psi0:            p.Psi0,
		ExternalForce:   p.ExternalForce,
	}
	return c
}
