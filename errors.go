package reactor

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the reactor's public API. Callers should
// compare with errors.Is rather than switching on the concrete type.
var (
	// ErrAllocation is returned when a backend cannot be constructed,
	// typically because the OS refused to hand out a kernel polling handle.
	ErrAllocation = errors.New("reactor: backend allocation failed")

	// ErrRange is returned by RegisterFile when fd is outside [0, setsize).
	ErrRange = errors.New("reactor: fd out of range")

	// ErrTooSmall is returned by Resize when newSize would drop a live fd.
	ErrTooSmall = errors.New("reactor: resize would drop a registered fd")

	// ErrNotFound is returned by DeleteTimer when id names no pending timer.
	ErrNotFound = errors.New("reactor: time event not found")

	// ErrBackend wraps an error surfaced by the OS polling primitive outside
	// dispatch: by Resize, RegisterFile, Destroy and WaitFD. Dispatch-time
	// backend errors are absorbed as "zero fired" and never reach the caller.
	ErrBackend = errors.New("reactor: backend error")
)

func wrapBackendErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrBackend, err)
}
