package sim

import "context"

type checkPolicy int

const (
	// checkUntilConverged stops checking once converged but keeps stepping.
	checkUntilConverged checkPolicy = iota
	// checkEarlyExit leaves the loop as soon as the fluids converge.
	checkEarlyExit
	// checkRecord only tracks the averages.
	checkRecord
)

type loopSpec struct {
	stage   string
	cycle   int
	budget  int
	outputs Outputs
	checks  checkPolicy
	// scale multiplies the averages before they reach the monitor.
	scale float64
	// globalClock times frames by the stage-wide iteration instead of the
	// loop-local one.
	globalClock bool
	outputFirst bool
	recordDrop  bool
	drop        float64
	cohesion    float64
}

// runLoop steps both fields at most l.budget times, running convergence
// checks every CheckFreq local iterations and emitting a frame every
// OutputFreq ticks of the chosen clock.
func (c *Controller) runLoop(ctx context.Context, l loopSpec) error {
	stats := StageStats{Stage: l.stage, Cycle: l.cycle, Cohesion: l.cohesion}
	converged := false

	for it := 0; it < l.budget; it++ {
		if err := ctx.Err(); err != nil {
			c.result.Stages = append(c.result.Stages, stats)
			return err
		}
		c.step(ctx)
		stats.Iterations++

		clock := it
		if l.globalClock {
			clock = c.stageIter
		}
		c.stageIter++

		if l.outputFirst {
			if err := c.maybeFrame(clock, it, l); err != nil {
				c.result.Stages = append(c.result.Stages, stats)
				return err
			}
		}

		if c.monitor.Due(it) && (l.checks != checkUntilConverged || !converged) {
			ok := c.check(it, l)
			if l.checks == checkRecord {
				converged = ok
			} else if ok {
				converged = true
			}
		}

		if !l.outputFirst {
			if err := c.maybeFrame(clock, it, l); err != nil {
				c.result.Stages = append(c.result.Stages, stats)
				return err
			}
		}

		if l.checks == checkEarlyExit && converged {
			break
		}
	}

	stats.Converged = converged
	c.result.Stages = append(c.result.Stages, stats)
	c.logger.Info("stage finished", "stage", l.stage, "cycle", l.cycle,
		"iterations", stats.Iterations, "converged", converged)
	return nil
}

func (c *Controller) check(it int, l loopSpec) bool {
	raw := c.averages(1)
	c.drift.Observe(raw...)
	c.stability.Observe(raw...)

	avgs := raw
	if l.scale != 1 {
		avgs = c.averages(l.scale)
	}
	ok, errs := c.monitor.Update(avgs...)
	c.result.Checks++

	c.logger.Debug("relative change",
		"stage", l.stage, "iteration", it, "f1", errs[0], "f2", errs[1],
		"threshold", c.budget.Threshold, "converged", ok)
	c.notify(Event{
		Kind:      EventCheck,
		Stage:     l.stage,
		Cycle:     l.cycle,
		Iteration: it,
		Budget:    l.budget,
		Averages:  avgs,
		Errors:    errs,
		Converged: ok,
		Cohesion:  l.cohesion,
	})
	return ok
}

func (c *Controller) maybeFrame(clock, it int, l loopSpec) error {
	if clock%c.budget.OutputFreq != 0 {
		return nil
	}
	if err := c.writeFrame(l.stage, l.outputs); err != nil {
		return err
	}
	if l.recordDrop {
		c.result.PressureDrops = append(c.result.PressureDrops, l.drop)
	}

	c.logger.Debug("frame written", "stage", l.stage, "frame", c.frame, "iteration", it)
	c.notify(Event{
		Kind:         EventFrame,
		Stage:        l.stage,
		Cycle:        l.cycle,
		Iteration:    it,
		Budget:       l.budget,
		Frame:        c.frame,
		PressureDrop: l.drop,
		Cohesion:     l.cohesion,
	})
	c.frame++
	return nil
}
