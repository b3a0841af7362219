package lattice

import "errors"

// Domain errors for lattice operations.
var (
	// ErrDimensionMismatch indicates fields or tag sources of different sizes.
	ErrDimensionMismatch = errors.New("lattice: dimension mismatch between fields")

	// ErrForeignField indicates a field that was not created by this solver.
	ErrForeignField = errors.New("lattice: field not created by this solver")

	// ErrComponentCount indicates a coupling over an unsupported number of fields.
	ErrComponentCount = errors.New("lattice: unsupported number of coupled components")
)
