package geometry

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound indicates an input file that could not be opened.
	ErrFileNotFound = errors.New("geometry: input file not found")

	// ErrAlreadyLoaded indicates a second load into an immutable field.
	ErrAlreadyLoaded = errors.New("geometry: field already loaded")

	// ErrDomainTooSmall indicates a lattice too thin for inset boundary planes.
	ErrDomainTooSmall = errors.New("geometry: domain too small for boundary planes")
)

// ParseError reports a malformed slice-structured input.
type ParseError struct {
	Path    string
	Index   int // voxel index in read order
	Token   string
	Wrapped error
}

func (e *ParseError) Error() string {
	name := e.Path
	if name == "" {
		name = "<stream>"
	}
	if e.Token == "" {
		return fmt.Sprintf("geometry: parse %s at voxel %d: %v", name, e.Index, e.Wrapped)
	}
	return fmt.Sprintf("geometry: parse %s at voxel %d (%q): %v", name, e.Index, e.Token, e.Wrapped)
}

func (e *ParseError) Unwrap() error {
	return e.Wrapped
}

var (
	errTruncated = errors.New("unexpected end of input")
	errBadTag    = errors.New("tag out of range 0..3")
)
