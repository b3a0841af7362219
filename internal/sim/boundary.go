package sim

import (
	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
)

// pressureBoundary owns the density-controlled inlet and outlet regions on
// a set of fields. Close removes them; a closed handle is inert.
type pressureBoundary struct {
	planes geometry.Planes
	fields []lattice.Field
	closed bool
}

func newPressureBoundary(planes geometry.Planes, fields ...lattice.Field) *pressureBoundary {
	for _, f := range fields {
		f.AddPressureBoundary(planes.Inlet)
		f.AddPressureBoundary(planes.Outlet)
	}
	return &pressureBoundary{planes: planes, fields: fields}
}

// set assigns the inlet and outlet density of one field.
func (b *pressureBoundary) set(f lattice.Field, inlet, outlet float64) {
	if b == nil || b.closed {
		return
	}
	f.SetBoundaryDensity(b.planes.Inlet, inlet)
	f.SetBoundaryDensity(b.planes.Outlet, outlet)
}

func (b *pressureBoundary) Close() error {
	if b == nil || b.closed {
		return nil
	}
	for _, f := range b.fields {
		f.RemovePressureBoundary(b.planes.Inlet)
		f.RemovePressureBoundary(b.planes.Outlet)
	}
	b.closed = true
	return nil
}

// replaceBoundary installs next as the controller's boundary, releasing any
// previous one.
func (c *Controller) replaceBoundary(next *pressureBoundary) {
	if c.bc != nil {
		c.bc.Close()
	}
	c.bc = next
}
