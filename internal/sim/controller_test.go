package sim_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/schedule"
	"github.com/san-kum/poresim/internal/sim"
)

var (
	testDensities = sim.Densities{F1: 2.0, F2: 1.4, NoFluid: 0.06}
	testFluids    = sim.Fluids{OmegaF1: 1.0, OmegaF2: 1.0, Cohesion: 0.9, Adhesion: 0.1}
	testCohesion  = sim.Cohesion{G00: 0.4, G01: 2.2, G11: 0.5}
)

// voidDomain is an all-void geometry of size d.
func voidDomain(d lattice.Dims) *geometry.Domain {
	g := geometry.New(d)
	Expect(g.Load(strings.NewReader(strings.Repeat("0 ", d.Volume())))).To(Succeed())
	return g
}

func steps(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

var _ = Describe("Controller", func() {
	var (
		f1, f2  *fakeField
		coupler *fakeCoupler
		writer  *fakeWriter
		events  []sim.Event
		ctrl    *sim.Controller
		budget  sim.Budget
	)

	build := func(kind sim.Kind) {
		ctrl = sim.New(kind, f1, f2, testDomain(), coupler)
		Expect(ctrl.SetDensities(testDensities)).To(Succeed())
		Expect(ctrl.SetFluids(testFluids)).To(Succeed())
		Expect(ctrl.SetCohesion(testCohesion)).To(Succeed())
		Expect(ctrl.SetWriter(writer)).To(Succeed())
		ctrl.AddObserver(sim.ObserverFunc(func(e sim.Event) { events = append(events, e) }))
	}

	countEvents := func(kind sim.EventKind) int {
		n := 0
		for _, e := range events {
			if e.Kind == kind {
				n++
			}
		}
		return n
	}

	BeforeEach(func() {
		f1 = newFakeField(testDims)
		f2 = newFakeField(testDims)
		coupler = &fakeCoupler{}
		writer = &fakeWriter{}
		events = nil
		budget = sim.Budget{MaxIter: 100, MaxRampIter: 50, CheckFreq: 10, OutputFreq: 25, Threshold: 1e-3}
	})

	Describe("SetUp", func() {
		BeforeEach(func() { build(sim.Imbibition) })

		It("couples the fields as F2, F1", func() {
			Expect(ctrl.SetUp()).To(Succeed())
			Expect(coupler.fields).To(HaveLen(2))
			Expect(coupler.fields[0]).To(BeIdenticalTo(lattice.Field(f2)))
			Expect(coupler.fields[1]).To(BeIdenticalTo(lattice.Field(f1)))
			Expect(coupler.coupling.matrices[0]).To(Equal(lattice.Uniform(0.9)))
		})

		It("seeds every fluid voxel exactly once per field", func() {
			Expect(ctrl.SetUp()).To(Succeed())
			testDims.Bounds().Each(func(x, y, z int) {
				idx := testDims.Index(x, y, z)
				switch testTag(x, y, z) {
				case geometry.TagVoid:
					Expect(f1.seeds[idx]).To(Equal(1))
					Expect(f2.seeds[idx]).To(Equal(1))
					Expect(f1.seedRho[idx]).To(Equal(0.06))
					Expect(f2.seedRho[idx]).To(Equal(1.4))
				case geometry.TagPrimary:
					Expect(f1.seeds[idx]).To(Equal(1))
					Expect(f2.seeds[idx]).To(Equal(1))
					Expect(f1.seedRho[idx]).To(Equal(2.0))
					Expect(f2.seedRho[idx]).To(Equal(0.06))
				default:
					Expect(f1.seeds).NotTo(HaveKey(idx))
					Expect(f2.seeds).NotTo(HaveKey(idx))
				}
			})
			Expect(f1.initialized).To(Equal(1))
			Expect(f2.initialized).To(Equal(1))
		})

		It("gives the fluids opposite wall adhesion", func() {
			Expect(ctrl.SetUp()).To(Succeed())
			Expect(f1.dynamics[geometry.TagSurface]).To(Equal(lattice.Dynamics{Kind: lattice.BounceBack, Density: 0.1}))
			Expect(f2.dynamics[geometry.TagSurface]).To(Equal(lattice.Dynamics{Kind: lattice.BounceBack, Density: -0.1}))
			Expect(f1.dynamics[geometry.TagSolid].Kind).To(Equal(lattice.NoDynamics))
			Expect(f2.dynamics[geometry.TagSolid].Kind).To(Equal(lattice.NoDynamics))
		})

		It("applies only non-zero body forces", func() {
			Expect(ctrl.SetExternalForce(sim.Force{F1: 1e-4, Direction: lattice.AxisY})).To(Succeed())
			Expect(ctrl.SetUp()).To(Succeed())
			Expect(f1.forces).To(Equal([]lattice.Vec3{{0, 1e-4, 0}}))
			Expect(f2.forces).To(BeEmpty())
		})

		It("propagates periodicity to both fields", func() {
			Expect(ctrl.SetPeriodic(sim.Periodic{Y: true, Z: true})).To(Succeed())
			Expect(f1.periodic).To(Equal([3]bool{false, true, true}))
			Expect(f2.periodic).To(Equal([3]bool{false, true, true}))
		})

		It("writes the geometry once", func() {
			Expect(ctrl.SetUp()).To(Succeed())
			Expect(writer.geometry).To(Equal(1))
		})

		It("rejects setters once set up", func() {
			Expect(ctrl.Phase()).To(Equal(sim.PhaseConfigured))
			Expect(ctrl.SetUp()).To(Succeed())
			Expect(ctrl.Phase()).To(Equal(sim.PhaseSetUp))
			Expect(ctrl.SetDensities(testDensities)).To(MatchError(sim.ErrConfigured))
			Expect(ctrl.SetWriter(writer)).To(MatchError(sim.ErrConfigured))
			Expect(ctrl.SetUp()).To(MatchError(sim.ErrConfigured))
		})

		It("rejects a domain size that disagrees with the geometry", func() {
			ctrl = sim.New(sim.Imbibition, f1, f2, testDomain(), coupler)
			Expect(ctrl.SetDomainSize(lattice.Dims{NX: 7, NY: 4, NZ: 4})).To(Succeed())
			Expect(errors.Is(ctrl.SetUp(), lattice.ErrDimensionMismatch)).To(BeTrue())
		})

		It("reports a missing geometry file", func() {
			ctrl = sim.New(sim.Imbibition, f1, f2, geometry.New(testDims), coupler)
			Expect(ctrl.SetFileNames(sim.FileNames{Geometry: filepath.Join(GinkgoT().TempDir(), "none.dat")})).To(Succeed())
			Expect(errors.Is(ctrl.SetUp(), geometry.ErrFileNotFound)).To(BeTrue())
		})
	})

	Describe("imbibition", func() {
		BeforeEach(func() { build(sim.Imbibition) })

		It("emits a frame every output interval and checks until the budget ends", func() {
			f1.average, f2.average = drifting, drifting
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Iterations).To(Equal(100))
			Expect(res.Checks).To(Equal(10))
			Expect(res.Frames).To(Equal(4))
			Expect(res.Converged).To(BeFalse())
			Expect(writer.frames("f1")).To(Equal(steps(4)))
			Expect(writer.frames("f2")).To(Equal(steps(4)))
			for _, s := range writer.snapshots {
				Expect(s.Outputs).To(Equal(sim.OutImage | sim.OutDump))
				Expect(s.Density).NotTo(BeNil())
				Expect(s.Velocity[0]).To(BeNil())
			}
			Expect(countEvents(sim.EventCheck)).To(Equal(10))
			Expect(countEvents(sim.EventFrame)).To(Equal(4))
			Expect(countEvents(sim.EventDone)).To(Equal(1))
		})

		It("stops checking once converged but keeps stepping", func() {
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Checks).To(Equal(1))
			Expect(res.Iterations).To(Equal(100))
			Expect(res.Frames).To(Equal(4))
			Expect(res.Converged).To(BeTrue())
		})

		It("writes a summary with the initial pressure drop", func() {
			_, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.summaries).To(HaveLen(1))
			s := writer.summaries[0]
			Expect(s.Adhesion).To(Equal(0.1))
			Expect(s.NoFluid).To(Equal(0.06))
			Expect(s.PressureDrops).To(HaveLen(1))
			Expect(s.PressureDrops[0]).To(BeNumerically("~", 0.2, 1e-12))
		})

		It("installs no pressure boundary", func() {
			_, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(f1.added).To(BeEmpty())
			Expect(f2.added).To(BeEmpty())
		})

		It("refuses to run twice", func() {
			_, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(ctrl.Phase()).To(Equal(sim.PhaseCompleted))
			_, err = ctrl.Run(context.Background(), budget)
			Expect(err).To(MatchError(sim.ErrCompleted))
		})

		It("rejects a zero output frequency", func() {
			budget.OutputFreq = 0
			_, err := ctrl.Run(context.Background(), budget)
			Expect(errors.Is(err, sim.ErrInvalidBudget)).To(BeTrue())
		})

		It("stops when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			f1.onStep = func() {
				if f1.steps == 7 {
					cancel()
				}
			}
			_, err := ctrl.Run(ctx, budget)
			Expect(err).To(MatchError(context.Canceled))
			Expect(f1.steps).To(Equal(7))
		})

		It("reports the frame that failed to write", func() {
			writer.failAt = 3
			res, err := ctrl.Run(context.Background(), budget)
			var fe *sim.FrameError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.Frame).To(Equal(1))
			Expect(fe.Stage).To(Equal(sim.StageEquilibration))
			Expect(writer.summaries).To(BeEmpty())
			Expect(res.Stages).To(HaveLen(1))
			Expect(res.Stages[0].Stage).To(Equal(sim.StageEquilibration))
			Expect(res.Stages[0].Iterations).To(Equal(f1.steps))
		})

		It("stays failed after a run error", func() {
			writer.failAt = 3
			_, err := ctrl.Run(context.Background(), budget)
			Expect(err).To(HaveOccurred())
			Expect(ctrl.Phase()).To(Equal(sim.PhaseFailed))

			stepped, written := f1.steps, len(writer.snapshots)
			_, err = ctrl.Run(context.Background(), budget)
			Expect(err).To(MatchError(sim.ErrFailed))
			Expect(f1.steps).To(Equal(stepped))
			Expect(writer.snapshots).To(HaveLen(written))
			Expect(writer.summaries).To(BeEmpty())
			Expect(ctrl.Phase()).To(Equal(sim.PhaseFailed))
		})

		It("detaches the coupling when the run ends", func() {
			_, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(coupler.coupling.detached).To(BeTrue())
		})

		It("detaches the coupling after a failed run", func() {
			writer.failAt = 1
			_, err := ctrl.Run(context.Background(), budget)
			Expect(err).To(HaveOccurred())
			Expect(coupler.coupling.detached).To(BeTrue())
		})

		It("runs on a domain too thin for boundary planes", func() {
			thin := lattice.Dims{NX: 8, NY: 8, NZ: 1}
			f1, f2 = newFakeField(thin), newFakeField(thin)
			ctrl = sim.New(sim.Imbibition, f1, f2, voidDomain(thin), coupler)
			Expect(ctrl.SetWriter(writer)).To(Succeed())

			res, err := ctrl.Run(context.Background(), sim.Budget{MaxIter: 10, CheckFreq: 5, OutputFreq: 5, Threshold: 1e-3})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Iterations).To(Equal(10))
			Expect(res.Frames).To(Equal(2))
			Expect(f1.added).To(BeEmpty())
			Expect(f2.added).To(BeEmpty())
			Expect(ctrl.Phase()).To(Equal(sim.PhaseCompleted))
		})
	})

	It("needs boundary planes for pressure-driven kinds", func() {
		thin := lattice.Dims{NX: 8, NY: 8, NZ: 1}
		ctrl = sim.New(sim.Drainage, newFakeField(thin), newFakeField(thin), voidDomain(thin), coupler)
		Expect(ctrl.SetWriter(writer)).To(Succeed())
		Expect(errors.Is(ctrl.SetUp(), geometry.ErrDomainTooSmall)).To(BeTrue())
	})

	Describe("drainage", func() {
		var expected schedule.Pressure

		BeforeEach(func() {
			build(sim.Drainage)
			Expect(ctrl.SetPressureSteps(3, 1)).To(Succeed())
			step := schedule.CapillaryStep(0.1, 0.9, 2.0, 0.06, 1)
			expected = schedule.PressureRamp(schedule.Boundary{Inlet: 2.0, Outlet: 1.4}, step, 3)
			budget.OutputFreq = 5
		})

		It("leaves each cycle as soon as both fluids settle", func() {
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(ctrl.Schedule()).To(Equal(expected))

			Expect(res.Stages).To(HaveLen(3))
			for i, st := range res.Stages {
				Expect(st.Stage).To(Equal(sim.StagePressure))
				Expect(st.Cycle).To(Equal(i))
				Expect(st.Iterations).To(Equal(11))
				Expect(st.Converged).To(BeTrue())
			}
			Expect(res.Iterations).To(Equal(33))
			Expect(res.Checks).To(Equal(6))
		})

		It("times frames on the clock shared by all cycles", func() {
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Frames).To(Equal(7))
			Expect(writer.frames("f1")).To(Equal(steps(7)))

			d := []float64{expected[0].PressureDrop(), expected[1].PressureDrop(), expected[2].PressureDrop()}
			Expect(res.PressureDrops).To(Equal([]float64{d[0], d[0], d[0], d[1], d[1], d[2], d[2]}))
			Expect(writer.summaries[0].PressureDrops).To(Equal(res.PressureDrops))
			for _, s := range writer.snapshots {
				Expect(s.Outputs).To(Equal(sim.OutAll))
			}
		})

		It("drives F1 in at the inlet and F2 out at the outlet", func() {
			_, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())

			Expect(f1.densities).To(HaveLen(6))
			Expect(f2.densities).To(HaveLen(6))
			for n := 0; n < 3; n++ {
				Expect(f1.densities[2*n].rho).To(Equal(expected[n].Inlet))
				Expect(f1.densities[2*n+1].rho).To(Equal(0.06))
				Expect(f2.densities[2*n].rho).To(Equal(0.06))
				Expect(f2.densities[2*n+1].rho).To(Equal(expected[n].Outlet))
			}
			Expect(f1.removed).To(Equal(f1.added))
			Expect(f2.removed).To(Equal(f2.added))
		})

		It("caps every cycle at the iteration budget", func() {
			f1.average, f2.average = drifting, drifting
			budget.MaxIter = 20
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stages).To(HaveLen(3))
			for _, st := range res.Stages {
				Expect(st.Iterations).To(Equal(20))
				Expect(st.Converged).To(BeFalse())
			}
			Expect(res.Iterations).To(Equal(60))
		})
	})

	Describe("runout", func() {
		BeforeEach(func() {
			build(sim.RunOut)
			Expect(ctrl.SetPressureSteps(2, 1)).To(Succeed())
			budget.MaxIter = 30
			budget.MaxRampIter = 15
			budget.OutputFreq = 10
		})

		It("applies the boundary to F2 only", func() {
			_, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(f1.added).To(BeEmpty())
			Expect(f1.densities).To(BeEmpty())
			Expect(f2.added).To(HaveLen(2))
			Expect(f2.densities).To(HaveLen(4))
		})

		It("equilibrates before the pressure cycles", func() {
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Stages).To(HaveLen(3))
			Expect(res.Stages[0].Stage).To(Equal(sim.StageEquilibration))
			Expect(res.Stages[0].Iterations).To(Equal(30))
			Expect(res.Stages[1].Iterations).To(Equal(11))
			Expect(res.Stages[2].Iterations).To(Equal(11))

			Expect(res.Frames).To(Equal(6))
			Expect(writer.frames("f2")).To(Equal(steps(6)))
			outs := []sim.Outputs{}
			for _, s := range writer.snapshots {
				if s.Prefix == "f1" {
					outs = append(outs, s.Outputs)
				}
			}
			ramp := sim.OutImage | sim.OutDump
			Expect(outs).To(Equal([]sim.Outputs{sim.OutAll, sim.OutAll, sim.OutAll, ramp, ramp, ramp}))
			Expect(res.PressureDrops).To(HaveLen(3))
		})

		It("caps cycles at the ramp budget", func() {
			f1.average, f2.average = drifting, drifting
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Iterations).To(Equal(30 + 2*15))
		})
	})

	Describe("drying", func() {
		BeforeEach(func() {
			build(sim.Drying)
			budget.MaxIter = 30
			budget.MaxRampIter = 20
			budget.OutputFreq = 10
		})

		It("equilibrates with a neutral cross cohesion", func() {
			Expect(ctrl.SetUp()).To(Succeed())
			Expect(coupler.coupling.matrices[0]).To(Equal(lattice.CohesionMatrix{{0.4, 1}, {1, 0.5}}))
		})

		It("skips the ramp without pressure runs", func() {
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Iterations).To(Equal(30))
			Expect(res.Stages).To(HaveLen(1))
			Expect(coupler.coupling.matrices).To(HaveLen(2))
			Expect(coupler.coupling.matrices[1].Cross()).To(Equal(2.2))
			Expect(writer.summaries[0].PressureDrops[0]).To(BeNumerically("~", 0.2, 1e-12))
		})

		It("holds the drying boundary for exactly the ramp budget", func() {
			Expect(ctrl.SetPressureSteps(2, 1)).To(Succeed())
			f1.average, f2.average = func(int) float64 { return 1 }, drifting
			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Iterations).To(Equal(50))
			Expect(res.Stages[1].Stage).To(Equal(sim.StageRamp))
			Expect(res.Stages[1].Iterations).To(Equal(20))
			Expect(res.Stages[1].Cohesion).To(Equal(2.2))

			step := schedule.CapillaryStep(0.1, 1, 2.0, 0.06, 1)
			last := f2.densities[len(f2.densities)-1]
			Expect(last.rho).To(BeNumerically("~", 1.4-2*step, 1e-12))
			for _, call := range f1.densities {
				Expect(call.rho).To(Equal(0.06))
			}
			Expect(res.Frames).To(Equal(5))
		})
	})

	Describe("drying-rate", func() {
		BeforeEach(func() {
			build(sim.DryingRate)
			budget.MaxIter = 30
			budget.MaxRampIter = 50
			budget.OutputFreq = 10
		})

		It("requires a ramp", func() {
			Expect(ctrl.SetUp()).To(MatchError(sim.ErrMissingRamp))
		})

		It("runs each step for exactly its share", func() {
			ramp, err := schedule.BuildRamp(
				schedule.CohesionSpec{Mode: schedule.ModeStep, Min: 0.5, Max: 0.9, Steps: 20},
				schedule.ViscositySpec{Enabled: true, Min: lattice.RelaxationRates{1.0, 1.2}, Max: lattice.RelaxationRates{0.8, 0.6}},
				50)
			Expect(err).NotTo(HaveOccurred())
			Expect(ctrl.SetRamp(ramp)).To(Succeed())
			Expect(ctrl.SetPressureSteps(1, 1)).To(Succeed())

			res, err := ctrl.Run(context.Background(), budget)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Iterations).To(Equal(80))
			Expect(res.Stages).To(HaveLen(3))
			Expect(res.Stages[1].Iterations).To(Equal(20))
			Expect(res.Stages[2].Iterations).To(Equal(30))

			m := coupler.coupling.matrices
			Expect(m).To(HaveLen(3))
			Expect(m[0].Cross()).To(Equal(1.0))
			Expect(m[1].Cross()).To(Equal(0.5))
			Expect(m[2].Cross()).To(Equal(0.9))
			Expect(coupler.coupling.rates).To(Equal([]lattice.RelaxationRates{{1.2, 1.0}, {1.2, 1.0}, {0.6, 0.8}}))

			Expect(res.Frames).To(Equal(8))
			Expect(writer.frames("f1")).To(Equal(steps(8)))
		})
	})
})
