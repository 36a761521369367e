// Package backend provides the OS readiness-polling abstraction that the
// reactor drives once per loop iteration. Exactly one implementation
// (evport, epoll, kqueue or select) is compiled in per target, selected by
// build tag rather than a runtime probe.
package backend

import "fmt"

// Mask is a bitset of readiness interests understood by the OS poller.
// Unlike the reactor-level mask, Mask never carries a Barrier bit: barrier
// ordering is a dispatch-time decision made by the reactor, not something
// the kernel needs to know about.
type Mask uint8

// Interest bits.
const (
	None  Mask = 0
	Read  Mask = 1 << 0
	Write Mask = 1 << 1
)

// String implements fmt.Stringer.
func (m Mask) String() string {
	switch m {
	case None:
		return "None"
	case Read:
		return "Read"
	case Write:
		return "Write"
	case Read | Write:
		return "Read|Write"
	default:
		return fmt.Sprintf("Mask(%d)", uint8(m))
	}
}

// Event is one fired (fd, mask) pair produced by a call to Poll.
type Event struct {
	FD   int
	Mask Mask
}

// Backend is the five-operation polling contract. A Backend is owned
// exclusively by one Reactor and must never be shared or called
// concurrently from more than one goroutine.
type Backend interface {
	// Name returns a static identifier for diagnostics: "evport", "epoll",
	// "kqueue" or "select".
	Name() string

	// Resize grows or shrinks capacity to newSize. The caller guarantees no
	// interest is currently registered for any fd >= newSize.
	Resize(newSize int) error

	// AddInterest installs readiness interest on fd for mask, in addition
	// to whatever interest is already registered. Idempotent.
	AddInterest(fd int, mask Mask) error

	// RemoveInterest clears mask from fd's registered interest.
	RemoveInterest(fd int, mask Mask) error

	// Poll blocks for at most timeoutMS milliseconds (a negative value
	// means forever, zero means return immediately) then appends ready
	// events into dst and returns the slice. An interrupted syscall
	// reports zero events, never an error.
	Poll(dst []Event, timeoutMS int) ([]Event, error)

	// Destroy releases backend-private OS resources. Idempotent only up to
	// the first call; callers must not call Destroy twice.
	Destroy() error
}

// New constructs the backend compiled in for this target, sized to hold
// setsize file descriptors.
func New(setsize int) (Backend, error) {
	return newBackend(setsize)
}
