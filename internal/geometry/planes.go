package geometry

import "github.com/san-kum/poresim/internal/lattice"

// Planes are the inlet and outlet slabs, each two voxels thick and inset
// one voxel from the x faces.
type Planes struct {
	Inlet  lattice.Box
	Outlet lattice.Box
}

// BoundaryPlanes derives the inlet and outlet slabs from the lattice size.
func BoundaryPlanes(d lattice.Dims) (Planes, error) {
	if d.NX < 4 || d.NY < 3 || d.NZ < 3 {
		return Planes{}, ErrDomainTooSmall
	}
	return Planes{
		Inlet:  lattice.Box{X0: 1, X1: 2, Y0: 1, Y1: d.NY - 2, Z0: 1, Z1: d.NZ - 2},
		Outlet: lattice.Box{X0: d.NX - 2, X1: d.NX - 1, Y0: 1, Y1: d.NY - 2, Z0: 1, Z1: d.NZ - 2},
	}, nil
}
