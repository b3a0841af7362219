package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigured indicates a setter called after setup.
	ErrConfigured = errors.New("sim: controller already set up")

	// ErrCompleted indicates a second Run on the same controller.
	ErrCompleted = errors.New("sim: controller already completed")

	// ErrFailed indicates Run on a controller whose previous run failed or
	// is still in progress.
	ErrFailed = errors.New("sim: controller run failed")

	// ErrUnknownKind indicates an unrecognized flow type.
	ErrUnknownKind = errors.New("sim: unknown flow type")

	// ErrMissingRamp indicates a drying-rate controller without a ramp.
	ErrMissingRamp = errors.New("sim: drying-rate requires a ramp schedule")

	// ErrInvalidBudget indicates a non-positive frequency or negative budget.
	ErrInvalidBudget = errors.New("sim: invalid iteration budget")
)

// FrameError wraps a writer failure with the frame being written.
type FrameError struct {
	Frame   int
	Stage   string
	Wrapped error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("sim: write frame %d (%s): %v", e.Frame, e.Stage, e.Wrapped)
}

func (e *FrameError) Unwrap() error {
	return e.Wrapped
}
