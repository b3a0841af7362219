// Package export writes snapshots, the porous-medium surface and the run
// summary to an output directory.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/poresim/internal/lattice"
)

// WriteVTK writes s as a legacy ASCII VTK STRUCTURED_POINTS image with one
// scalar array. VTK orders points x fastest.
func WriteVTK(w io.Writer, title, name string, s *lattice.Scalar) error {
	d := s.Dims
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# vtk DataFile Version 3.0\n%s\nASCII\n", title)
	fmt.Fprintf(bw, "DATASET STRUCTURED_POINTS\nDIMENSIONS %d %d %d\n", d.NX, d.NY, d.NZ)
	fmt.Fprintf(bw, "ORIGIN 0 0 0\nSPACING 1 1 1\nPOINT_DATA %d\n", d.Volume())
	fmt.Fprintf(bw, "SCALARS %s double 1\nLOOKUP_TABLE default\n", name)

	buf := make([]byte, 0, 32)
	for z := 0; z < d.NZ; z++ {
		for y := 0; y < d.NY; y++ {
			for x := 0; x < d.NX; x++ {
				buf = strconv.AppendFloat(buf[:0], s.At(x, y, z), 'g', -1, 64)
				buf = append(buf, ' ')
				bw.Write(buf)
			}
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// WriteDAT writes s as whitespace-separated values in x, y, z order, one
// line per (x, y) row. The layout reads back with the slice loaders.
func WriteDAT(w io.Writer, s *lattice.Scalar) error {
	d := s.Dims
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for x := 0; x < d.NX; x++ {
		for y := 0; y < d.NY; y++ {
			for z := 0; z < d.NZ; z++ {
				buf = strconv.AppendFloat(buf[:0], s.At(x, y, z), 'g', -1, 64)
				if z < d.NZ-1 {
					buf = append(buf, ' ')
				}
				bw.Write(buf)
			}
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}
