package reactor

import (
	"fmt"

	"go.uber.org/atomic"
	"trpc.group/trpc-go/reactor/internal/backend"
	"trpc.group/trpc-go/reactor/metrics"
)

// Mask is a bitset of the events a caller can register interest in, and the
// bitset a fired callback is told actually happened.
type Mask int

// Interest bits. None denotes "no interest" / "free slot".
const (
	None     Mask = 0
	Readable Mask = 1 << 0
	Writable Mask = 1 << 1
	Barrier  Mask = 1 << 2
)

// String implements fmt.Stringer.
func (m Mask) String() string {
	if m == None {
		return "None"
	}
	var parts []string
	if m&Readable != 0 {
		parts = append(parts, "Readable")
	}
	if m&Writable != 0 {
		parts = append(parts, "Writable")
	}
	if m&Barrier != 0 {
		parts = append(parts, "Barrier")
	}
	s := parts[0]
	for _, p := range parts[1:] {
		s += "|" + p
	}
	return s
}

// Flags selects which parts of one call to ProcessEvents run.
type Flags int

// Flag bits.
const (
	ProcessFiles    Flags = 1 << 0
	ProcessTimes    Flags = 1 << 1
	DontWait        Flags = 1 << 2
	CallBeforeSleep Flags = 1 << 3
	CallAfterSleep  Flags = 1 << 4

	allEvents = ProcessFiles | ProcessTimes | CallBeforeSleep | CallAfterSleep
)

// FileHandler is invoked when a registered fd becomes ready for an event in
// fired. user is whatever was passed to RegisterFile.
type FileHandler func(r *Reactor, fd int, user interface{}, fired Mask)

// NoMore is returned by a TimeHandler that wants its timer retired rather
// than rescheduled.
const NoMore int64 = -1

// TimeHandler is invoked when a timer's deadline is reached. A positive
// return value reschedules the timer that many milliseconds from now; NoMore
// retires it.
type TimeHandler func(r *Reactor, id int64, user interface{}) int64

// Finalizer runs once, after a timer has been fully retired and its last
// reference (held by a currently-running handler invocation) has dropped.
type Finalizer func(r *Reactor, user interface{})

// Hook is a before-sleep/after-sleep callback.
type Hook func(r *Reactor)

const tombstoneID int64 = -1

// Reactor multiplexes file descriptor readiness and timers on a single
// goroutine. The zero value is not usable; construct with New.
type Reactor struct {
	opts *options

	backend backend.Backend
	fired   []backend.Event

	events  []fileEvent
	setsize int
	maxfd   int

	timeHead    *timeEvent
	nextTimerID int64

	lastWallTime int64

	stop     atomic.Bool
	dontWait atomic.Bool

	beforeSleep Hook
	afterSleep  Hook

	stats Stats
}

// New constructs a Reactor sized to hold setsize file descriptors, backed by
// the highest-performing polling primitive compiled in for this target
// (evport > epoll > kqueue > select).
func New(setsize int, opts ...Option) (*Reactor, error) {
	if setsize <= 0 {
		setsize = 1
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	be, err := backend.New(setsize)
	if err != nil {
		o.logger.Errorf("reactor: backend allocation failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	r := &Reactor{
		opts:    o,
		backend: be,
		events:  make([]fileEvent, setsize),
		fired:   make([]backend.Event, 0, setsize),
		setsize: setsize,
		maxfd:   -1,
	}
	r.lastWallTime = wallClockSeconds()
	return r, nil
}

// Destroy releases the backend's OS resources. The Reactor must not be used
// afterward.
func (r *Reactor) Destroy() error {
	if err := r.backend.Destroy(); err != nil {
		r.opts.logger.Errorf("reactor: destroy failed: %v", err)
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// SetSize returns the reactor's current capacity.
func (r *Reactor) SetSize() int {
	return r.setsize
}

// Resize grows or shrinks capacity to newSize. It fails with ErrTooSmall
// when maxfd >= newSize, leaving capacity unchanged.
func (r *Reactor) Resize(newSize int) error {
	if r.maxfd >= newSize {
		return ErrTooSmall
	}
	if err := r.backend.Resize(newSize); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	events := make([]fileEvent, newSize)
	copy(events, r.events)
	r.events = events
	r.setsize = newSize
	return nil
}

// SetDontWait sets the reactor-level DontWait flag. When set it wins over
// the per-call flags passed to ProcessEvents: every poll becomes
// non-blocking until cleared. Callers use this to force a drain when an
// urgent external event was queued from within a handler.
func (r *Reactor) SetDontWait(dontWait bool) {
	r.dontWait.Store(dontWait)
}

// BackendName returns the static identifier of the compiled-in backend:
// "evport", "epoll", "kqueue" or "select".
func (r *Reactor) BackendName() string {
	return r.backend.Name()
}

// SetBeforeSleep installs the hook run immediately before the backend's
// blocking poll, when ProcessEvents is called with CallBeforeSleep.
func (r *Reactor) SetBeforeSleep(h Hook) {
	r.beforeSleep = h
}

// SetAfterSleep installs the hook run immediately after the backend's
// blocking poll, when ProcessEvents is called with CallAfterSleep.
func (r *Reactor) SetAfterSleep(h Hook) {
	r.afterSleep = h
}

// Run clears the stop flag and repeatedly calls ProcessEvents until Stop is
// called. The stop check happens at the top of every iteration.
func (r *Reactor) Run() {
	r.stop.Store(false)
	for !r.stop.Load() {
		r.ProcessEvents(allEvents)
	}
}

// Stop requests the loop started by Run to exit. It takes effect at the next
// top-of-loop check; it does not interrupt an in-flight iteration.
func (r *Reactor) Stop() {
	r.stop.Store(true)
}

func (r *Reactor) countMetric(name int, delta uint64) {
	if r.opts.metricsEnabled {
		metrics.Add(name, delta)
	}
}

func (r *Reactor) logf(format string, args ...interface{}) {
	if r.opts.logger != nil {
		r.opts.logger.Warnf(format, args...)
	}
}
