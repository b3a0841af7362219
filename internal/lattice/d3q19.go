package lattice

import "sync"

// D3Q19 velocity set.
const q = 19

var (
	cx = [q]int{0, 1, -1, 0, 0, 0, 0, 1, -1, 1, -1, 1, -1, 1, -1, 0, 0, 0, 0}
	cy = [q]int{0, 0, 0, 1, -1, 0, 0, 1, -1, -1, 1, 0, 0, 0, 0, 1, -1, 1, -1}
	cz = [q]int{0, 0, 0, 0, 0, 1, -1, 0, 0, 0, 0, 1, -1, -1, 1, 1, -1, -1, 1}

	weights  [q]float64
	opposite [q]int
)

func init() {
	for i := 0; i < q; i++ {
		switch abs(cx[i]) + abs(cy[i]) + abs(cz[i]) {
		case 0:
			weights[i] = 1.0 / 3.0
		case 1:
			weights[i] = 1.0 / 18.0
		default:
			weights[i] = 1.0 / 36.0
		}
		for j := 0; j < q; j++ {
			if cx[j] == -cx[i] && cy[j] == -cy[i] && cz[j] == -cz[i] {
				opposite[i] = j
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func equilibrium(i int, rho float64, u Vec3, usqr float64) float64 {
	cu := float64(cx[i])*u[0] + float64(cy[i])*u[1] + float64(cz[i])*u[2]
	return weights[i] * rho * (1 + 3*cu + 4.5*cu*cu - 1.5*usqr)
}

const minChunk = 4

type densityRegion struct {
	box Box
	rho float64
}

type attachment struct {
	p      Processor
	active bool
}

// Grid is the reference D3Q19 BGK implementation of [Field].
type Grid struct {
	dims     Dims
	omega    float64
	periodic [3]bool

	f, ftmp []float64
	dyn     []Dynamics

	rho   []float64
	vel   [3][]float64
	force [3][]float64

	// eqVel overrides the equilibrium velocity once a processor has run.
	eqVel    [3][]float64
	useEqVel bool

	regions    []densityRegion
	processors []*attachment
	mu         sync.Mutex
}

var _ Field = (*Grid)(nil)

func newGrid(d Dims, omega float64) *Grid {
	n := d.Volume()
	g := &Grid{
		dims:  d,
		omega: omega,
		f:     make([]float64, n*q),
		ftmp:  make([]float64, n*q),
		dyn:   make([]Dynamics, n),
		rho:   make([]float64, n),
	}
	for a := 0; a < 3; a++ {
		g.vel[a] = make([]float64, n)
		g.force[a] = make([]float64, n)
		g.eqVel[a] = make([]float64, n)
	}
	g.InitializeAtEquilibrium(d.Bounds(), 1.0, Vec3{})
	return g
}

func (g *Grid) Dims() Dims { return g.dims }

func (g *Grid) Omega() float64 { return g.omega }

func (g *Grid) SetOmega(w float64) { g.omega = w }

func (g *Grid) SetPeriodic(axis Axis, periodic bool) {
	g.periodic[axis] = periodic
}

func (g *Grid) DefineDynamics(tags TagSource, tag int, d Dynamics) error {
	if tags.Dims() != g.dims {
		return ErrDimensionMismatch
	}
	g.dims.Bounds().Each(func(x, y, z int) {
		if tags.Tag(x, y, z) == tag {
			g.dyn[g.dims.Index(x, y, z)] = d
		}
	})
	return nil
}

func (g *Grid) InitializeAtEquilibrium(region Box, rho float64, u Vec3) {
	box, ok := region.Clip(g.dims)
	if !ok {
		return
	}
	usqr := u[0]*u[0] + u[1]*u[1] + u[2]*u[2]
	box.Each(func(x, y, z int) {
		idx := g.dims.Index(x, y, z)
		for i := 0; i < q; i++ {
			g.f[idx*q+i] = equilibrium(i, rho, u, usqr)
		}
		g.rho[idx] = rho
		for a := 0; a < 3; a++ {
			g.vel[a][idx] = u[a]
		}
	})
}

func (g *Grid) SetExternalForce(region Box, f Vec3) {
	box, ok := region.Clip(g.dims)
	if !ok {
		return
	}
	box.Each(func(x, y, z int) {
		idx := g.dims.Index(x, y, z)
		for a := 0; a < 3; a++ {
			g.force[a][idx] = f[a]
		}
	})
}

func (g *Grid) AddPressureBoundary(region Box) {
	for _, r := range g.regions {
		if r.box == region {
			return
		}
	}
	g.regions = append(g.regions, densityRegion{box: region, rho: g.meanDensity(region)})
}

func (g *Grid) RemovePressureBoundary(region Box) {
	kept := g.regions[:0]
	for _, r := range g.regions {
		if r.box != region {
			kept = append(kept, r)
		}
	}
	g.regions = kept
}

// SetBoundaryDensity updates a registered boundary region. For a region
// that is not registered the density is imposed once.
func (g *Grid) SetBoundaryDensity(region Box, rho float64) {
	for i := range g.regions {
		if g.regions[i].box == region {
			g.regions[i].rho = rho
			return
		}
	}
	g.imposeDensity(region, rho)
}

func (g *Grid) Initialize() {
	g.computeMoments()
}

func (g *Grid) CollideAndStream() {
	g.collide()
	g.stream()
	for _, r := range g.regions {
		g.imposeDensity(r.box, r.rho)
	}
	g.computeMoments()

	g.mu.Lock()
	procs := make([]*attachment, 0, len(g.processors))
	for _, a := range g.processors {
		if a.active {
			procs = append(procs, a)
		}
	}
	g.mu.Unlock()
	for _, a := range procs {
		a.p.Process()
	}
}

func (g *Grid) AverageDensity() float64 {
	sum, n := 0.0, 0
	for idx, d := range g.dyn {
		if d.Kind == Fluid {
			sum += g.rho[idx]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (g *Grid) Density() *Scalar {
	s := NewScalar(g.dims)
	copy(s.Data, g.rho)
	return s
}

func (g *Grid) VelocityComponent(axis Axis) *Scalar {
	s := NewScalar(g.dims)
	copy(s.Data, g.vel[axis])
	return s
}

func (g *Grid) attach(p Processor) *attachment {
	a := &attachment{p: p, active: true}
	g.mu.Lock()
	g.processors = append(g.processors, a)
	g.mu.Unlock()
	return a
}

func (g *Grid) detach(a *attachment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a.active = false
	kept := g.processors[:0]
	for _, p := range g.processors {
		if p != a {
			kept = append(kept, p)
		}
	}
	g.processors = kept
}

func (g *Grid) meanDensity(region Box) float64 {
	box, ok := region.Clip(g.dims)
	if !ok {
		return 0
	}
	sum, n := 0.0, 0
	box.Each(func(x, y, z int) {
		sum += g.rho[g.dims.Index(x, y, z)]
		n++
	})
	return sum / float64(n)
}

func (g *Grid) imposeDensity(region Box, rho float64) {
	box, ok := region.Clip(g.dims)
	if !ok {
		return
	}
	box.Each(func(x, y, z int) {
		idx := g.dims.Index(x, y, z)
		if g.dyn[idx].Kind != Fluid {
			return
		}
		u := g.localVelocity(idx)
		usqr := u[0]*u[0] + u[1]*u[1] + u[2]*u[2]
		for i := 0; i < q; i++ {
			g.f[idx*q+i] = equilibrium(i, rho, u, usqr)
		}
	})
}

func (g *Grid) localVelocity(idx int) Vec3 {
	var rho float64
	var j Vec3
	base := idx * q
	for i := 0; i < q; i++ {
		fi := g.f[base+i]
		rho += fi
		j[0] += fi * float64(cx[i])
		j[1] += fi * float64(cy[i])
		j[2] += fi * float64(cz[i])
	}
	if rho <= 0 {
		return Vec3{}
	}
	return Vec3{j[0] / rho, j[1] / rho, j[2] / rho}
}

func (g *Grid) collide() {
	d := g.dims
	omega := g.omega
	ParallelFor(d.NX, minChunk, func(start, end int) {
		for x := start; x < end; x++ {
			for y := 0; y < d.NY; y++ {
				for z := 0; z < d.NZ; z++ {
					idx := d.Index(x, y, z)
					if g.dyn[idx].Kind != Fluid {
						continue
					}
					rho := g.rho[idx]
					var u Vec3
					for a := 0; a < 3; a++ {
						if g.useEqVel {
							u[a] = g.eqVel[a][idx]
						} else {
							u[a] = g.vel[a][idx] + g.force[a][idx]/omega
						}
					}
					usqr := u[0]*u[0] + u[1]*u[1] + u[2]*u[2]
					base := idx * q
					for i := 0; i < q; i++ {
						g.f[base+i] += omega * (equilibrium(i, rho, u, usqr) - g.f[base+i])
					}
				}
			}
		}
	})
}

// neighbor returns the flat index of (x, y, z) shifted by direction i,
// wrapping periodic axes. ok is false when the shift leaves the lattice.
func (g *Grid) neighbor(x, y, z, i int) (int, bool) {
	nx, ny, nz := x+cx[i], y+cy[i], z+cz[i]
	var ok bool
	if nx, ok = wrap(nx, g.dims.NX, g.periodic[AxisX]); !ok {
		return 0, false
	}
	if ny, ok = wrap(ny, g.dims.NY, g.periodic[AxisY]); !ok {
		return 0, false
	}
	if nz, ok = wrap(nz, g.dims.NZ, g.periodic[AxisZ]); !ok {
		return 0, false
	}
	return g.dims.Index(nx, ny, nz), true
}

func wrap(v, n int, periodic bool) (int, bool) {
	if v >= 0 && v < n {
		return v, true
	}
	if !periodic {
		return 0, false
	}
	return (v%n + n) % n, true
}

func (g *Grid) stream() {
	d := g.dims
	ParallelFor(d.NX, minChunk, func(start, end int) {
		for x := start; x < end; x++ {
			for y := 0; y < d.NY; y++ {
				for z := 0; z < d.NZ; z++ {
					idx := d.Index(x, y, z)
					if g.dyn[idx].Kind != Fluid {
						continue
					}
					base := idx * q
					for i := 0; i < q; i++ {
						nb, ok := g.neighbor(x, y, z, i)
						if ok && g.dyn[nb].Kind == Fluid {
							g.ftmp[nb*q+i] = g.f[base+i]
						} else {
							g.ftmp[base+opposite[i]] = g.f[base+i]
						}
					}
				}
			}
		}
	})
	g.f, g.ftmp = g.ftmp, g.f
}

func (g *Grid) computeMoments() {
	d := g.dims
	ParallelFor(d.NX, minChunk, func(start, end int) {
		for x := start; x < end; x++ {
			for y := 0; y < d.NY; y++ {
				for z := 0; z < d.NZ; z++ {
					idx := d.Index(x, y, z)
					switch g.dyn[idx].Kind {
					case BounceBack:
						g.rho[idx] = g.dyn[idx].Density
						g.vel[0][idx], g.vel[1][idx], g.vel[2][idx] = 0, 0, 0
						continue
					case NoDynamics:
						g.rho[idx] = 0
						g.vel[0][idx], g.vel[1][idx], g.vel[2][idx] = 0, 0, 0
						continue
					}
					var rho float64
					var j Vec3
					base := idx * q
					for i := 0; i < q; i++ {
						fi := g.f[base+i]
						rho += fi
						j[0] += fi * float64(cx[i])
						j[1] += fi * float64(cy[i])
						j[2] += fi * float64(cz[i])
					}
					g.rho[idx] = rho
					for a := 0; a < 3; a++ {
						if rho > 0 {
							g.vel[a][idx] = j[a] / rho
						} else {
							g.vel[a][idx] = 0
						}
					}
				}
			}
		}
	})
}
