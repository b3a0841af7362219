package sim_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/poresim/internal/geometry"
	"github.com/san-kum/poresim/internal/lattice"
	"github.com/san-kum/poresim/internal/sim"
)

var _ = Describe("SingleComponent", func() {
	var (
		field   *fakeField
		coupler *fakeCoupler
		writer  *fakeWriter
		density *geometry.DensityField
		single  *sim.SingleComponent
		budget  sim.Budget
	)

	BeforeEach(func() {
		field = newFakeField(testDims)
		coupler = &fakeCoupler{}
		writer = &fakeWriter{}
		density = geometry.NewDensityField(testDims)
		Expect(density.Load(strings.NewReader(strings.Repeat("0.5 ", testDims.Volume())))).To(Succeed())

		single = sim.NewSingle(field, testDomain(), density, coupler)
		Expect(single.SetFluid(sim.SingleFluid{Omega: 1, Cohesion: -5, Adhesion: 0.3})).To(Succeed())
		Expect(single.SetPotential(sim.Potential{Rho0: 1.5, Psi0: 1})).To(Succeed())
		Expect(single.SetWriter(writer)).To(Succeed())
		budget = sim.Budget{MaxIter: 100, CheckFreq: 10, OutputFreq: 25, Threshold: 1e-3}
	})

	It("couples with the potential's reference density", func() {
		Expect(single.SetUp()).To(Succeed())
		Expect(coupler.single).To(Equal([]float64{-5, 1.5}))
		Expect(field.dynamics[geometry.TagSurface]).To(Equal(lattice.Dynamics{Kind: lattice.BounceBack, Density: 0.3}))
	})

	It("seeds only void voxels from the density field", func() {
		Expect(single.SetUp()).To(Succeed())
		testDims.Bounds().Each(func(x, y, z int) {
			idx := testDims.Index(x, y, z)
			if testTag(x, y, z) == geometry.TagVoid {
				Expect(field.seeds[idx]).To(Equal(1))
				Expect(field.seedRho[idx]).To(Equal(0.5))
			} else {
				Expect(field.seeds).NotTo(HaveKey(idx))
			}
		})
	})

	It("writes frames only after the density settles", func() {
		field.average = func(steps int) float64 {
			if steps < 50 {
				return float64(steps) + 1
			}
			return 51
		}
		res, err := single.Run(context.Background(), budget)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Iterations).To(Equal(100))
		Expect(res.Checks).To(Equal(7))
		Expect(res.Converged).To(BeTrue())
		Expect(res.Frames).To(Equal(1))
		Expect(writer.snapshots).To(HaveLen(1))
		Expect(writer.snapshots[0].Prefix).To(Equal("f"))
		Expect(writer.snapshots[0].Outputs).To(Equal(sim.OutImage | sim.OutDump))
		Expect(writer.summaries).To(BeEmpty())
	})

	It("never writes a frame without convergence", func() {
		field.average = drifting
		res, err := single.Run(context.Background(), budget)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Frames).To(BeZero())
		Expect(res.Checks).To(Equal(10))
	})

	It("detaches the coupling when the run ends", func() {
		_, err := single.Run(context.Background(), budget)
		Expect(err).NotTo(HaveOccurred())
		Expect(coupler.coupling.detached).To(BeTrue())
	})

	It("stays failed after a run error", func() {
		writer.failAt = 1
		res, err := single.Run(context.Background(), budget)
		Expect(err).To(HaveOccurred())
		Expect(res.Stages).To(HaveLen(1))
		Expect(res.Stages[0].Iterations).To(Equal(26))
		Expect(single.Phase()).To(Equal(sim.PhaseFailed))
		Expect(coupler.coupling.detached).To(BeTrue())

		stepped := field.steps
		_, err = single.Run(context.Background(), budget)
		Expect(err).To(MatchError(sim.ErrFailed))
		Expect(field.steps).To(Equal(stepped))
	})

	It("rejects a density field of another size", func() {
		other := geometry.NewDensityField(lattice.Dims{NX: 2, NY: 2, NZ: 2})
		Expect(other.Load(strings.NewReader(strings.Repeat("1 ", 8)))).To(Succeed())
		s := sim.NewSingle(field, testDomain(), other, coupler)
		Expect(s.SetUp()).To(MatchError(lattice.ErrDimensionMismatch))
	})
})
