package sim

// EventKind tags an Event.
type EventKind int

const (
	EventStage EventKind = iota
	EventCheck
	EventFrame
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventStage:
		return "stage"
	case EventCheck:
		return "check"
	case EventFrame:
		return "frame"
	case EventDone:
		return "done"
	}
	return "unknown"
}

// Stage names carried by events and stage statistics.
const (
	StageEquilibration = "equilibration"
	StagePressure      = "pressure"
	StageRamp          = "ramp"
)

// Event reports progress from inside a run. Fields not relevant to Kind
// are zero.
type Event struct {
	Kind  EventKind
	Phase Phase
	Stage string
	Cycle int

	// Iteration is stage-local, Total counts every step of the run.
	Iteration int
	Total     int
	Budget    int

	Averages  []float64
	Errors    []float64
	Converged bool

	Frame        int
	PressureDrop float64
	Cohesion     float64

	Result *Result
}

// Observer receives events synchronously from the run loop.
type Observer interface {
	Observe(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
