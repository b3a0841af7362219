package geometry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/san-kum/poresim/internal/lattice"
)

// Voxel tags.
const (
	TagVoid    = 0 // secondary fluid
	TagSurface = 1 // wetted solid surface
	TagSolid   = 2 // interior solid
	TagPrimary = 3 // primary fluid
)

// Domain is the voxel tag field. It is empty until loaded and read-only
// afterwards.
type Domain struct {
	dims   lattice.Dims
	tags   []int8
	loaded bool
}

var _ lattice.TagSource = (*Domain)(nil)

func New(dims lattice.Dims) *Domain {
	return &Domain{dims: dims, tags: make([]int8, dims.Volume())}
}

func (d *Domain) Dims() lattice.Dims { return d.dims }

func (d *Domain) Loaded() bool { return d.loaded }

func (d *Domain) Tag(x, y, z int) int {
	return int(d.tags[d.dims.Index(x, y, z)])
}

// Count returns the number of voxels carrying tag.
func (d *Domain) Count(tag int) int {
	n := 0
	for _, t := range d.tags {
		if int(t) == tag {
			n++
		}
	}
	return n
}

// Load reads nx*ny*nz whitespace-separated integer tags, x outermost and z
// innermost. Trailing input is ignored.
func (d *Domain) Load(r io.Reader) error {
	return d.load(r, "")
}

// LoadFile opens path and loads it. A missing file yields ErrFileNotFound.
func (d *Domain) LoadFile(path string) error {
	f, err := openInput(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return d.load(f, path)
}

func (d *Domain) load(r io.Reader, path string) error {
	if d.loaded {
		return ErrAlreadyLoaded
	}
	tags := make([]int8, len(d.tags))
	err := scanValues(r, path, len(tags), func(i int, tok string) error {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return err
		}
		if v < TagVoid || v > TagPrimary {
			return errBadTag
		}
		tags[i] = int8(v)
		return nil
	})
	if err != nil {
		return err
	}
	d.tags = tags
	d.loaded = true
	return nil
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// scanValues feeds the first n whitespace-separated tokens of r to fn.
func scanValues(r io.Reader, path string, n int, fn func(i int, tok string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	for i := 0; i < n; i++ {
		if !sc.Scan() {
			werr := errTruncated
			if err := sc.Err(); err != nil {
				werr = err
			}
			return &ParseError{Path: path, Index: i, Wrapped: werr}
		}
		tok := sc.Text()
		if err := fn(i, tok); err != nil {
			return &ParseError{Path: path, Index: i, Token: tok, Wrapped: err}
		}
	}
	return nil
}
