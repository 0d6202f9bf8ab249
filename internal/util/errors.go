package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required record, release or representative was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates malformed collaborator input (FASTA, TSV, record blocks)
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupported indicates a driver or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrConflict indicates a write conflicted with existing data
	ErrConflict = errors.New("conflict")
)
