package domain

import "errors"

// Sentinel errors shared across the repository, cache and engine
// boundaries. A missing benefit surfaces as ErrNotFound and the engine
// turns it into a ServiceNotCovered rejection; every other error is a
// contract fault.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)
