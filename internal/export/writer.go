package export

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/sim"
)

// Geometry side outputs.
const (
	GeometryImage   = "porousMedium.vtk"
	GeometrySurface = "porousMedium.stl"
)

// Writer stores every output under one directory. It implements sim.Writer.
type Writer struct {
	dir    string
	logger *slog.Logger
}

var _ sim.Writer = (*Writer)(nil)

// NewWriter creates dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir, logger: slog.New(slog.DiscardHandler)}, nil
}

func (w *Writer) SetLogger(l *slog.Logger) { w.logger = l }

func (w *Writer) Dir() string { return w.dir }

// ImageName, VelocityName and DumpName return the file names of one
// snapshot part. Images carry a zero-padded frame number, DAT files do not.
func ImageName(prefix string, frame int) string {
	return fmt.Sprintf("%s_rho_step_%06d.vtk", prefix, frame)
}

func VelocityName(prefix string, axis lattice.Axis, frame int) string {
	return fmt.Sprintf("%s_v%s_step_%d.dat", prefix, axis, frame)
}

func DumpName(prefix string, frame int) string {
	return fmt.Sprintf("%s_rho_dist_step_%d.dat", prefix, frame)
}

func (w *Writer) WriteGeometry(d *geometry.Domain) error {
	tags := lattice.NewScalar(d.Dims())
	d.Dims().Bounds().Each(func(x, y, z int) {
		tags.Data[d.Dims().Index(x, y, z)] = float64(d.Tag(x, y, z))
	})
	if err := w.create(GeometryImage, func(f io.Writer) error {
		return WriteVTK(f, "porousMedium", "tag", tags)
	}); err != nil {
		return err
	}

	tris := Surface(d, SurfaceBox(d.Dims()))
	w.logger.Debug("surface extracted", "triangles", len(tris))
	return w.create(GeometrySurface, func(f io.Writer) error {
		return WriteBinarySTL(f, "porousMedium", tris)
	})
}

func (w *Writer) WriteSnapshot(s sim.Snapshot) error {
	if s.Outputs.Has(sim.OutImage) {
		if err := w.create(ImageName(s.Prefix, s.Frame), func(f io.Writer) error {
			return WriteVTK(f, s.Prefix+" density", "density", s.Density)
		}); err != nil {
			return err
		}
	}
	if s.Outputs.Has(sim.OutVelocity) {
		for a := lattice.AxisX; a <= lattice.AxisZ; a++ {
			v := s.Velocity[a]
			if err := w.create(VelocityName(s.Prefix, a, s.Frame), func(f io.Writer) error {
				return WriteDAT(f, v)
			}); err != nil {
				return err
			}
		}
	}
	if s.Outputs.Has(sim.OutDump) {
		if err := w.create(DumpName(s.Prefix, s.Frame), func(f io.Writer) error {
			return WriteDAT(f, s.Density)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) WriteSummary(s sim.Summary) error {
	return w.create(SummaryFile, func(f io.Writer) error {
		return WriteSummary(f, s)
	})
}

func (w *Writer) create(name string, fn func(io.Writer) error) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return f.Close()
}
