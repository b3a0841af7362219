package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/poresim/internal/config"
	"github.com/san-kum/poresim/internal/export"
	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/sim"
	"github.com/san-kum/poresim/internal/storage"
)

const nx, ny, nz = 6, 5, 5

// writeGeometry writes a channel bounded by wetted walls in y, primary
// fluid in the first half and void in the rest.
func writeGeometry(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				tag := geometry.TagVoid
				switch {
				case y == 0 || y == ny-1:
					tag = geometry.TagSurface
				case x < nx/2:
					tag = geometry.TagPrimary
				}
				fmt.Fprintf(&b, "%d ", tag)
			}
			b.WriteByte('\n')
		}
	}
	path := filepath.Join(dir, "geometry.dat")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func writeDensity(t *testing.T, dir string) string {
	t.Helper()
	values := strings.Repeat("0.5 ", nx*ny*nz)
	path := filepath.Join(dir, "rho.dat")
	require.NoError(t, os.WriteFile(path, []byte(values), 0644))
	return path
}

func tinyConfig(t *testing.T, flow string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Filenames.Microstructure = writeGeometry(t, dir)
	cfg.Filenames.OutputDirectory = filepath.Join(dir, "out")
	cfg.Domain.Resolution = config.Resolution{X: nx, Y: ny, Z: nz}
	cfg.Flow.Type = flow
	cfg.Flow.NumberOfPressureSteps = 1
	cfg.Fluids.Gc = 0.9
	cfg.Fluids.Adhesion = -0.4
	cfg.Simulations = config.Simulations{
		MaxIterations:          20,
		MaxPressureIterations:  10,
		OutputFrequency:        10,
		ConvergeCheckFrequency: 5,
		ConvergeCriterion:      1e-4,
	}
	return cfg
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusOK, Status(nil))
	assert.Equal(t, StatusFailed, Status(errors.New("boom")))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{config.ModelMultiphase, config.ModelPhaseChange}, reg.ListModels())

	_, err := reg.Build("lattice-gas", config.DefaultConfig(), nil)
	assert.Error(t, err)

	assert.Equal(t, []string{"imbibition", "drainage", "runout", "drying", "drying-rate"}, ListFlows())
}

func TestExecuteImbibition(t *testing.T) {
	ctx := context.Background()
	cfg := tinyConfig(t, "imbibition")

	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	var frames int
	obs := sim.ObserverFunc(func(e sim.Event) {
		if e.Kind == sim.EventFrame {
			frames++
		}
	})

	status, res, err := ExecuteConfig(ctx, cfg, config.ModelMultiphase, Options{
		Store:     st,
		LogLevel:  "debug",
		Observers: []sim.Observer{obs},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, 20, res.Iterations)
	assert.Equal(t, frames, res.Frames)
	assert.True(t, res.Frames > 0)

	out := cfg.Filenames.OutputDirectory
	for _, name := range []string{
		export.GeometryImage,
		export.GeometrySurface,
		export.ImageName("f1", 0),
		export.ImageName("f2", 0),
		export.SummaryFile,
		EventLogName,
	} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	runs, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "imbibition", runs[0].Kind)
	assert.Equal(t, storage.StatusCompleted, runs[0].Status)

	checks, err := st.LoadChecks(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, checks, res.Checks)
}

func TestExecuteDrainageSummary(t *testing.T) {
	cfg := tinyConfig(t, "drainage")
	cfg.Flow.NumberOfPressureSteps = 2

	status, res, err := ExecuteConfig(context.Background(), cfg, config.ModelMultiphase, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)

	sum, err := export.ReadSummary(filepath.Join(cfg.Filenames.OutputDirectory, export.SummaryFile))
	require.NoError(t, err)
	assert.Equal(t, cfg.Fluids.Adhesion, sum.Adhesion)
	assert.NotEmpty(t, sum.PressureDrops)
	assert.Equal(t, res.PressureDrops, sum.PressureDrops)
}

func TestExecutePhaseChange(t *testing.T) {
	cfg := tinyConfig(t, "imbibition")
	cfg.Filenames.DensityInput = writeDensity(t, filepath.Dir(cfg.Filenames.Microstructure))
	cfg.Phase.CohesionGc = -5

	status, res, err := ExecuteConfig(context.Background(), cfg, config.ModelPhaseChange, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "single-component", res.Kind)
	assert.Equal(t, 20, res.Iterations)
}

func TestExecuteConfigErrorDoesNotSimulate(t *testing.T) {
	cfg := tinyConfig(t, "percolation")

	status, res, err := ExecuteConfig(context.Background(), cfg, config.ModelMultiphase, Options{})
	assert.Equal(t, StatusFailed, status)
	assert.Nil(t, res)
	assert.True(t, config.IsConfigError(err))

	_, statErr := os.Stat(cfg.Filenames.OutputDirectory)
	assert.True(t, os.IsNotExist(statErr), "output directory should not be created")
}

func TestExecuteMissingGeometry(t *testing.T) {
	cfg := tinyConfig(t, "imbibition")
	cfg.Filenames.Microstructure = filepath.Join(t.TempDir(), "missing.dat")

	status, _, err := ExecuteConfig(context.Background(), cfg, config.ModelMultiphase, Options{})
	assert.Equal(t, StatusFailed, status)
	assert.True(t, errors.Is(err, geometry.ErrFileNotFound))
}

func TestExecuteLoadFailure(t *testing.T) {
	status, _, err := Execute(context.Background(), filepath.Join(t.TempDir(), "none.yaml"), config.ModelMultiphase, Options{})
	assert.Equal(t, StatusFailed, status)
	assert.Error(t, err)
}

func TestRunBeforeSetup(t *testing.T) {
	exp := New(config.DefaultConfig(), config.ModelMultiphase, Options{})
	_, err := exp.Run(context.Background())
	assert.True(t, errors.Is(err, ErrNotSetUp))
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	good := tinyConfig(t, "imbibition")
	goodPath := filepath.Join(dir, "good.yaml")
	require.NoError(t, config.Save(goodPath, good))

	bad := tinyConfig(t, "imbibition")
	bad.Domain.Resolution.X = 0
	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, config.Save(badPath, bad))

	outcomes := NewBatch(Options{}, 2).Run(context.Background(), []Job{
		{Path: goodPath, Model: config.ModelMultiphase},
		{Path: badPath, Model: config.ModelMultiphase},
	})
	require.Len(t, outcomes, 2)
	assert.Equal(t, StatusOK, outcomes[0].Status)
	assert.Equal(t, StatusFailed, outcomes[1].Status)
	assert.True(t, config.IsConfigError(outcomes[1].Err))
	assert.Equal(t, 1, Failed(outcomes))
}
