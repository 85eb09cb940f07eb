// Package segerr holds the error taxonomy shared by the grid, ROI, criteria and
// connectivity packages. Every failure is returned synchronously to the caller;
// callers test the category with errors.Is against the sentinels below and
// recover the offending parameters with errors.As on the typed carriers.
package segerr

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds signals a coordinate, sphere or ROI outside the grid.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrAxis signals an unrecognized axis or anatomical side, or a plane argument that is not planar.
	ErrAxis = errors.New("invalid axis")
	// ErrAxisMismatch signals an anatomical side whose axis differs from the plane it is applied to.
	ErrAxisMismatch = errors.New("axis mismatch")
	// ErrDegenerateCut signals a cut with an empty or ill-defined result.
	ErrDegenerateCut = errors.New("degenerate cut")
	// ErrEmptyROI signals a criterion requested against an ROI with no occupied voxel.
	ErrEmptyROI = errors.New("empty roi")
	// ErrShapeMismatch signals a streamline with fewer than two nodes.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrLengthMismatch signals boolean vectors of different lengths.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrLabelNotFound signals an atlas label with no voxel where at least one is required.
	ErrLabelNotFound = errors.New("label not found")
	// ErrGridMismatch signals two volumes defined on different grids.
	ErrGridMismatch = errors.New("grid mismatch")
	// ErrInvalidArgument signals a malformed scalar argument (negative radius, bad dims).
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error carries the operation and parameters that produced a failure.
type Error struct {
	Op     string
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

// New creates an Error of the given kind with a formatted detail message.
func New(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// ShapeMismatchError reports the streamline that violated the node-count contract.
type ShapeMismatchError struct {
	Op        string
	Index     int
	NodeCount int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: streamline %d has %d nodes, need at least 2",
		e.Op, ErrShapeMismatch, e.Index, e.NodeCount)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// LengthMismatchError reports a boolean vector that does not match the tractogram length.
type LengthMismatchError struct {
	Name string
	Got  int
	Want int
}

func (e *LengthMismatchError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: got %d entries, want %d", ErrLengthMismatch, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: %q has %d entries, want %d", ErrLengthMismatch, e.Name, e.Got, e.Want)
}

func (e *LengthMismatchError) Unwrap() error { return ErrLengthMismatch }

// LabelNotFoundError reports the atlas labels that matched no voxel.
type LabelNotFoundError struct {
	Labels []int
}

func (e *LabelNotFoundError) Error() string {
	return fmt.Sprintf("%s: no voxel carries label(s) %v", ErrLabelNotFound, e.Labels)
}

func (e *LabelNotFoundError) Unwrap() error { return ErrLabelNotFound }
