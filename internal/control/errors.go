package control

import "errors"

var (
	// ErrInvalidDelay is returned when a repeat delay is negative
	ErrInvalidDelay = errors.New("delay must not be negative")

	// ErrSpawn wraps any failure to start a repeat worker
	ErrSpawn = errors.New("could not start clicking")

	// ErrNoSimulator is returned when the plane was built without a simulator
	ErrNoSimulator = errors.New("no action simulator configured")
)
