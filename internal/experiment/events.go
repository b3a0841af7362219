package experiment

import (
	"math"

	"github.com/san-kum/poresim/internal/logging"
	"github.com/san-kum/poresim/internal/sim"
)

// EventObserver mirrors controller events into a JSONL event log.
type EventObserver struct {
	log *logging.EventLog
}

func NewEventObserver(l *logging.EventLog) *EventObserver {
	return &EventObserver{log: l}
}

func (o *EventObserver) Observe(e sim.Event) {
	entry := map[string]any{
		"event": e.Kind.String(),
		"phase": e.Phase.String(),
		"total": e.Total,
	}
	switch e.Kind {
	case sim.EventStage:
		entry["stage"] = e.Stage
		entry["cycle"] = e.Cycle
		entry["budget"] = e.Budget
	case sim.EventCheck:
		entry["stage"] = e.Stage
		entry["cycle"] = e.Cycle
		entry["iteration"] = e.Iteration
		entry["averages"] = finite(e.Averages)
		entry["errors"] = finite(e.Errors)
		entry["converged"] = e.Converged
	case sim.EventFrame:
		entry["stage"] = e.Stage
		entry["frame"] = e.Frame
		entry["iteration"] = e.Iteration
		entry["pressure_drop"] = e.PressureDrop
		entry["cohesion"] = e.Cohesion
	case sim.EventDone:
		if e.Result != nil {
			entry["frames"] = e.Result.Frames
			entry["checks"] = e.Result.Checks
			entry["converged"] = e.Result.Converged
		}
	}
	o.log.Log(entry)
}

// finite replaces values JSON cannot carry with nil.
func finite(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
	}
	return out
}
