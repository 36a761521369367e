package reactor

import (
	"time"

	"trpc.group/trpc-go/reactor/metrics"
)

// timeEvent is a node in the unordered, doubly linked pending-timer list.
// A node whose id has been overwritten with tombstoneID is logically
// deleted and must not fire; it is only physically unlinked once refcount
// reaches zero, since a currently running handler invocation holds a
// reference to its own node.
type timeEvent struct {
	id        int64
	sec, ms   int64
	handler   TimeHandler
	finalizer Finalizer
	user      interface{}
	refcount  int

	prev, next *timeEvent
}

func wallClockSeconds() int64 {
	return time.Now().Unix()
}

func nowSecMS() (sec, ms int64) {
	now := time.Now()
	return now.Unix(), int64(now.Nanosecond() / 1e6)
}

func deadlineAfter(delayMS int64) (sec, ms int64) {
	sec, ms = nowSecMS()
	ms += delayMS % 1000
	sec += delayMS / 1000
	if ms >= 1000 {
		sec++
		ms -= 1000
	}
	return sec, ms
}

// before reports whether (sec, ms) is strictly earlier than (sec2, ms2).
func before(sec, ms, sec2, ms2 int64) bool {
	if sec != sec2 {
		return sec < sec2
	}
	return ms < ms2
}

// CreateTimer schedules handler to run delayMS milliseconds from now,
// returning a strictly increasing id never reused by a later call. The node
// is always inserted at the head of the timer list.
func (r *Reactor) CreateTimer(delayMS int64, handler TimeHandler, user interface{}, finalizer Finalizer) int64 {
	id := r.nextTimerID
	r.nextTimerID++
	sec, ms := deadlineAfter(delayMS)
	te := &timeEvent{
		id:        id,
		sec:       sec,
		ms:        ms,
		handler:   handler,
		finalizer: finalizer,
		user:      user,
		next:      r.timeHead,
	}
	if r.timeHead != nil {
		r.timeHead.prev = te
	}
	r.timeHead = te
	r.countMetric(metrics.TimersCreated, 1)
	return id
}

// DeleteTimer marks the timer named by id as tombstoned. If a handler
// invocation currently holds a reference to it, physical removal and the
// finalizer call are deferred to the next processTimeEvents pass.
func (r *Reactor) DeleteTimer(id int64) error {
	for te := r.timeHead; te != nil; te = te.next {
		if te.id == id {
			te.id = tombstoneID
			r.countMetric(metrics.TimersDeleted, 1)
			return nil
		}
	}
	return ErrNotFound
}

// nearestTimer returns the pending timer with the earliest deadline, or nil
// if the list is empty. Ties are broken by list traversal order.
func (r *Reactor) nearestTimer() *timeEvent {
	var nearest *timeEvent
	for te := r.timeHead; te != nil; te = te.next {
		if te.id == tombstoneID {
			continue
		}
		if nearest == nil || before(te.sec, te.ms, nearest.sec, nearest.ms) {
			nearest = te
		}
	}
	return nearest
}

func (r *Reactor) unlink(te *timeEvent) {
	if te.prev != nil {
		te.prev.next = te.next
	} else {
		r.timeHead = te.next
	}
	if te.next != nil {
		te.next.prev = te.prev
	}
	te.prev, te.next = nil, nil
}

// processTimeEvents walks the timer list once, firing every timer whose
// deadline has passed. It returns the number of handlers invoked.
func (r *Reactor) processTimeEvents() int {
	now := wallClockSeconds()
	if now < r.lastWallTime {
		// Backward clock jump: force every pending timer to be considered
		// expired this tick rather than sleeping for a potentially huge,
		// bogus duration.
		for te := r.timeHead; te != nil; te = te.next {
			te.sec = 0
		}
	}
	r.lastWallTime = now

	// Timers created by a handler during this very pass are shielded from
	// firing in the same pass, bounding recursive timer creation.
	maxID := r.nextTimerID - 1
	nowSec, nowMS := nowSecMS()

	fired := 0
	te := r.timeHead
	for te != nil {
		next := te.next
		if te.id == tombstoneID {
			if te.refcount == 0 {
				r.unlink(te)
				if te.finalizer != nil {
					te.finalizer(r, te.user)
				}
			}
			te = next
			continue
		}
		if te.id > maxID {
			te = next
			continue
		}
		if !before(nowSec, nowMS, te.sec, te.ms) {
			retval := r.invokeTimeHandler(te)
			fired++
			if retval == NoMore {
				te.id = tombstoneID
			} else {
				te.sec, te.ms = deadlineAfter(retval)
			}
		}
		te = next
	}
	return fired
}

// invokeTimeHandler runs te's handler under the refcount protocol that keeps
// a node alive across self-deletion, optionally containing a panic per
// WithIgnoreHandlerPanic.
func (r *Reactor) invokeTimeHandler(te *timeEvent) (retval int64) {
	te.refcount++
	defer func() {
		te.refcount--
	}()
	if r.opts.ignoreHandlerPanic {
		defer func() {
			if p := recover(); p != nil {
				r.opts.logger.Errorf("reactor: time handler id=%d panicked: %v", te.id, p)
				r.countMetric(metrics.HandlerPanicsRecovered, 1)
				retval = NoMore
			}
		}()
	}
	return te.handler(r, te.id, te.user)
}
