package threadservice

import "errors"

var (
	// ErrUnknownPool is returned when a pool id is not registered.
	ErrUnknownPool = errors.New("unknown thread pool")

	// ErrNotActive is returned by operations that need the global pool before Activate.
	ErrNotActive = errors.New("thread service is not active")
)
