package storage

import (
	"context"

	"github.com/san-kum/poresim/internal/sim"
)

// Recorder writes check and frame events of one run to the ledger. Errors
// do not interrupt the run; the first one is kept and returned by Err.
type Recorder struct {
	store *Store
	ctx   context.Context
	runID string
	seq   int
	err   error
}

func NewRecorder(ctx context.Context, s *Store, runID string) *Recorder {
	return &Recorder{store: s, ctx: ctx, runID: runID}
}

func (r *Recorder) Observe(e sim.Event) {
	if r.err != nil {
		return
	}
	switch e.Kind {
	case sim.EventCheck:
		r.err = r.store.AddCheck(r.ctx, r.runID, Check{
			Seq:       r.seq,
			Stage:     e.Stage,
			Cycle:     e.Cycle,
			Iteration: e.Iteration,
			Total:     e.Total,
			Averages:  e.Averages,
			Errors:    e.Errors,
			Converged: e.Converged,
		})
		r.seq++
	case sim.EventFrame:
		r.err = r.store.AddFrame(r.ctx, r.runID, Frame{
			Frame:        e.Frame,
			Stage:        e.Stage,
			Cycle:        e.Cycle,
			Iteration:    e.Iteration,
			Total:        e.Total,
			PressureDrop: e.PressureDrop,
			Cohesion:     e.Cohesion,
		})
	}
}

func (r *Recorder) Err() error { return r.err }
