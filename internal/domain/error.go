package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Job lifecycle
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrJobFinalized      = errors.New("job already finalized")

	// Generation pipeline
	ErrGeneration  = errors.New("image generation failed")
	ErrStorage     = errors.New("artifact storage failed")
	ErrQueueFull   = errors.New("generation queue full")
	ErrUnsupported = errors.New("not supported by the generation backend")
)
