// Package lattice defines the flow-field boundary used by the simulation
// controllers, plus a reference D3Q19 solver that satisfies it.
//
// The controllers never look inside a field. They only use:
//
//   - [Field]: one fluid component on an nx×ny×nz lattice (dynamics by tag,
//     equilibrium seeding, body force, density boundaries, collide-and-stream,
//     density and velocity queries)
//   - [Coupler]: integrates an inter-particle (cohesion) processor over one
//     or two fields and returns a [Coupling] handle
//   - [Coupling]: lets the controller change cohesion and relaxation rates
//     between stages
//
// # Example
//
//	solver := lattice.NewSolver()
//	f1 := solver.NewField(dims, 1.0)
//	f2 := solver.NewField(dims, 1.0)
//	c, _ := solver.CoupleComponents([]lattice.Field{f2, f1}, g, omega)
//	f1.CollideAndStream()
//	f2.CollideAndStream()
//
// # Thread Safety
//
// Fields are NOT safe for concurrent use. [Grid.CollideAndStream] spreads its
// own work over goroutines internally and returns only once the step is done.
package lattice
