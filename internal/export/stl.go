package export

import (
	"encoding/binary"
	"io"

	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
)

var end = binary.LittleEndian

// Triangle is one STL facet.
type Triangle struct {
	Normal   [3]float32
	Vertices [3][3]float32
	Attr     uint16
}

// face offsets: outward normal and the four corners, counter-clockwise
// seen from outside, relative to the voxel's low corner.
var faces = [6]struct {
	n       [3]int
	corners [4][3]float32
}{
	{[3]int{-1, 0, 0}, [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{[3]int{1, 0, 0}, [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{[3]int{0, -1, 0}, [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{[3]int{0, 1, 0}, [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{[3]int{0, 0, -1}, [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
	{[3]int{0, 0, 1}, [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
}

// SurfaceBox is the region meshed for the porous-medium surface: one voxel
// in from every face, two along x so the pressure planes stay out of it.
func SurfaceBox(d lattice.Dims) lattice.Box {
	return lattice.Box{X0: 2, X1: d.NX - 3, Y0: 1, Y1: d.NY - 2, Z0: 1, Z1: d.NZ - 2}
}

// Surface extracts the voxel-face isosurface at level 0.5 of the tag field
// inside box: a voxel is inside when its tag exceeds 0.5, and a face is
// emitted wherever an inside voxel borders an outside one within box.
func Surface(g *geometry.Domain, box lattice.Box) []Triangle {
	inside := func(x, y, z int) bool {
		return box.Contains(x, y, z) && g.Tag(x, y, z) > 0
	}

	var tris []Triangle
	box.Each(func(x, y, z int) {
		if !inside(x, y, z) {
			return
		}
		for _, f := range faces {
			nx, ny, nz := x+f.n[0], y+f.n[1], z+f.n[2]
			if !box.Contains(nx, ny, nz) || inside(nx, ny, nz) {
				continue
			}
			normal := [3]float32{float32(f.n[0]), float32(f.n[1]), float32(f.n[2])}
			var c [4][3]float32
			for i, corner := range f.corners {
				c[i] = [3]float32{float32(x) + corner[0], float32(y) + corner[1], float32(z) + corner[2]}
			}
			tris = append(tris,
				Triangle{Normal: normal, Vertices: [3][3]float32{c[0], c[1], c[2]}},
				Triangle{Normal: normal, Vertices: [3][3]float32{c[0], c[2], c[3]}},
			)
		}
	})
	return tris
}

// WriteBinarySTL writes tris in binary STL: an 80-byte header, the facet
// count and 50 bytes per facet, little-endian.
func WriteBinarySTL(w io.Writer, header string, tris []Triangle) error {
	var head [80]byte
	copy(head[:], header)
	if err := binary.Write(w, end, head); err != nil {
		return err
	}
	if err := binary.Write(w, end, uint32(len(tris))); err != nil {
		return err
	}
	for i := range tris {
		if err := binary.Write(w, end, &tris[i]); err != nil {
			return err
		}
	}
	return nil
}
