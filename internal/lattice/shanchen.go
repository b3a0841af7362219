package lattice

import (
	"math"
	"sync"
)

// Solver builds reference grids and couples them with Shan-Chen
// interaction processors.
type Solver struct{}

var _ Coupler = (*Solver)(nil)

func NewSolver() *Solver {
	return &Solver{}
}

// NewField returns a grid of size d at unit density with relaxation omega.
func (s *Solver) NewField(d Dims, omega float64) *Grid {
	return newGrid(d, omega)
}

// CoupleComponents attaches a multi-component processor to fields[0]. The
// cohesion matrix and relaxation rates are indexed in the order of fields.
func (s *Solver) CoupleComponents(fields []Field, g CohesionMatrix, omega RelaxationRates) (Coupling, error) {
	if len(fields) != 2 {
		return nil, ErrComponentCount
	}
	var grids [2]*Grid
	for i, f := range fields {
		grid, ok := f.(*Grid)
		if !ok {
			return nil, ErrForeignField
		}
		grids[i] = grid
	}
	if grids[0].dims != grids[1].dims {
		return nil, ErrDimensionMismatch
	}
	mc := &multiComponent{grids: grids}
	mc.SetCohesion(g, omega)
	mc.handle = grids[0].attach(mc)
	return mc, nil
}

// CoupleSingle attaches a single-component processor with potential
// psi(rho) = rho0 * (1 - exp(-rho/rho0)).
func (s *Solver) CoupleSingle(field Field, gc, rho0 float64) (Coupling, error) {
	grid, ok := field.(*Grid)
	if !ok {
		return nil, ErrForeignField
	}
	sc := &singleComponent{grid: grid, gc: gc, rho0: rho0}
	sc.handle = grid.attach(sc)
	return sc, nil
}

type multiComponent struct {
	mu     sync.RWMutex
	grids  [2]*Grid
	g      CohesionMatrix
	omega  RelaxationRates
	handle *attachment
}

func (m *multiComponent) SetCohesion(g CohesionMatrix, omega RelaxationRates) {
	m.mu.Lock()
	m.g = g
	m.omega = omega
	m.mu.Unlock()
	for i, grid := range m.grids {
		if omega[i] > 0 {
			grid.SetOmega(omega[i])
		}
	}
}

func (m *multiComponent) Detach() {
	if m.handle == nil {
		return
	}
	m.grids[0].detach(m.handle)
	m.handle = nil
	for _, grid := range m.grids {
		grid.useEqVel = false
	}
}

// Process computes the interaction force on every fluid voxel of both
// components and stores the resulting equilibrium velocities.
func (m *multiComponent) Process() {
	m.mu.RLock()
	g, omega := m.g, m.omega
	m.mu.RUnlock()

	a, b := m.grids[0], m.grids[1]
	d := a.dims
	ParallelFor(d.NX, minChunk, func(start, end int) {
		for x := start; x < end; x++ {
			for y := 0; y < d.NY; y++ {
				for z := 0; z < d.NZ; z++ {
					idx := d.Index(x, y, z)
					if a.dyn[idx].Kind != Fluid || b.dyn[idx].Kind != Fluid {
						continue
					}
					// Density-weighted neighbor sums per component.
					var grad [2]Vec3
					for i := 1; i < q; i++ {
						nb, ok := a.neighbor(x, y, z, i)
						if !ok {
							continue
						}
						for c, grid := range m.grids {
							w := weights[i] * grid.rho[nb]
							grad[c][0] += w * float64(cx[i])
							grad[c][1] += w * float64(cy[i])
							grad[c][2] += w * float64(cz[i])
						}
					}

					var rhoW float64
					var jW Vec3
					for c, grid := range m.grids {
						rho := grid.rho[idx]
						rhoW += omega[c] * rho
						for k := 0; k < 3; k++ {
							jW[k] += omega[c] * rho * grid.vel[k][idx]
						}
					}
					var uTot Vec3
					if rhoW > 0 {
						for k := 0; k < 3; k++ {
							uTot[k] = jW[k] / rhoW
						}
					}

					for c, grid := range m.grids {
						rho := grid.rho[idx]
						for k := 0; k < 3; k++ {
							if rho <= 0 || omega[c] == 0 {
								grid.eqVel[k][idx] = uTot[k]
								continue
							}
							force := -rho * (g[c][0]*grad[0][k] + g[c][1]*grad[1][k])
							force += rho * grid.force[k][idx]
							grid.eqVel[k][idx] = uTot[k] + force/(omega[c]*rho)
						}
					}
				}
			}
		}
	})
	a.useEqVel = true
	b.useEqVel = true
}

type singleComponent struct {
	grid   *Grid
	gc     float64
	rho0   float64
	handle *attachment
}

// SetCohesion takes the self-interaction strength from g[0][0] and the
// relaxation rate from omega[0].
func (s *singleComponent) SetCohesion(g CohesionMatrix, omega RelaxationRates) {
	s.gc = g[0][0]
	if omega[0] > 0 {
		s.grid.SetOmega(omega[0])
	}
}

func (s *singleComponent) Detach() {
	if s.handle == nil {
		return
	}
	s.grid.detach(s.handle)
	s.handle = nil
	s.grid.useEqVel = false
}

func (s *singleComponent) psi(rho float64) float64 {
	return s.rho0 * (1 - math.Exp(-rho/s.rho0))
}

func (s *singleComponent) Process() {
	grid := s.grid
	d := grid.dims
	omega := grid.omega
	ParallelFor(d.NX, minChunk, func(start, end int) {
		for x := start; x < end; x++ {
			for y := 0; y < d.NY; y++ {
				for z := 0; z < d.NZ; z++ {
					idx := d.Index(x, y, z)
					if grid.dyn[idx].Kind != Fluid {
						continue
					}
					var grad Vec3
					for i := 1; i < q; i++ {
						nb, ok := grid.neighbor(x, y, z, i)
						if !ok {
							continue
						}
						w := weights[i] * s.psi(grid.rho[nb])
						grad[0] += w * float64(cx[i])
						grad[1] += w * float64(cy[i])
						grad[2] += w * float64(cz[i])
					}
					rho := grid.rho[idx]
					psi := s.psi(rho)
					for k := 0; k < 3; k++ {
						u := grid.vel[k][idx]
						if rho <= 0 {
							grid.eqVel[k][idx] = u
							continue
						}
						force := -s.gc*psi*grad[k] + rho*grid.force[k][idx]
						grid.eqVel[k][idx] = u + force/(omega*rho)
					}
				}
			}
		}
	})
	grid.useEqVel = true
}
