package geometry

import (
	"io"
	"strconv"

	"github.com/san-kum/poresim/internal/lattice"
)

// DensityField is a per-voxel initial density read from a slice-structured
// input. Like [Domain] it is loaded once.
type DensityField struct {
	lattice.Scalar
	loaded bool
}

func NewDensityField(dims lattice.Dims) *DensityField {
	return &DensityField{Scalar: *lattice.NewScalar(dims)}
}

func (f *DensityField) Loaded() bool { return f.loaded }

// Load reads nx*ny*nz whitespace-separated floats in x, y, z order.
func (f *DensityField) Load(r io.Reader) error {
	return f.load(r, "")
}

func (f *DensityField) LoadFile(path string) error {
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()
	return f.load(in, path)
}

func (f *DensityField) load(r io.Reader, path string) error {
	if f.loaded {
		return ErrAlreadyLoaded
	}
	data := make([]float64, len(f.Data))
	err := scanValues(r, path, len(data), func(i int, tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return err
		}
		data[i] = v
		return nil
	})
	if err != nil {
		return err
	}
	f.Data = data
	f.loaded = true
	return nil
}
