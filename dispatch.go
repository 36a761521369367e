package reactor

import (
	"reflect"

	"trpc.group/trpc-go/reactor/internal/backend"
	"trpc.group/trpc-go/reactor/metrics"
)

// ProcessEvents runs one iteration of the loop: it computes a sleep budget,
// polls the backend, dispatches whatever fired, and (if ProcessTimes is
// set) expires due timers. It returns the total number of file and timer
// events dispatched. With neither ProcessFiles nor ProcessTimes set, it
// returns 0 immediately without touching the backend.
func (r *Reactor) ProcessEvents(flags Flags) int {
	if flags&(ProcessFiles|ProcessTimes) == 0 {
		return 0
	}

	budgetMS := r.sleepBudgetMS(flags)

	if flags&CallBeforeSleep != 0 && r.beforeSleep != nil {
		r.beforeSleep(r)
	}

	fired, err := r.backend.Poll(r.fired[:0], budgetMS)
	if err != nil {
		// Backend errors during dispatch are absorbed as "zero fired" so
		// the loop stays live; only backend errors outside dispatch (New,
		// Resize, RegisterFile, Destroy) surface to the caller.
		r.logf("reactor: poll failed, continuing: %v", err)
		r.countMetric(metrics.BackendPollErrors, 1)
		fired = r.fired[:0]
	}
	r.fired = fired
	r.countMetric(metrics.BackendPolls, 1)
	r.countMetric(metrics.BackendFiredEvents, uint64(len(fired)))

	if flags&CallAfterSleep != 0 && r.afterSleep != nil {
		r.afterSleep(r)
	}

	count := 0
	if flags&ProcessFiles != 0 {
		count += r.dispatchFired(fired)
	}
	if flags&ProcessTimes != 0 {
		n := r.processTimeEvents()
		r.countMetric(metrics.TimersFired, uint64(n))
		count += n
	}
	r.stats.LastDispatched = count
	return count
}

func (r *Reactor) sleepBudgetMS(flags Flags) int {
	haveFiles := r.maxfd >= 0
	processTimes := flags&ProcessTimes != 0
	dontWait := r.dontWait.Load() || flags&DontWait != 0

	if !haveFiles && !processTimes {
		return 0
	}
	if processTimes && !dontWait {
		if nearest := r.nearestTimer(); nearest != nil {
			nowSec, nowMS := nowSecMS()
			deltaMS := (nearest.sec-nowSec)*1000 + (nearest.ms - nowMS)
			if deltaMS < 0 {
				deltaMS = 0
			}
			return int(deltaMS)
		}
		// No pending timers: fall through to the dontWait/forever choice
		// below, same as if timers weren't being processed at all.
	}
	if dontWait {
		return 0
	}
	return -1 // forever
}

// dispatchFired runs the read/write ordering protocol for every (fd, mask)
// the backend reported this iteration.
func (r *Reactor) dispatchFired(fired []backend.Event) int {
	count := 0
	for _, ev := range fired {
		count += r.dispatchOne(ev.FD, fromBackendMask(ev.Mask))
	}
	return count
}

func (r *Reactor) dispatchOne(fd int, firedMask Mask) int {
	if fd < 0 || fd >= r.setsize {
		return 0
	}
	fe := &r.events[fd]
	invert := fe.mask&Barrier != 0
	effective := fe.mask & firedMask
	dispatched := 0
	readFired := false

	if !invert && effective&Readable != 0 {
		r.invokeFileHandler(fe.read, fd, firedMask)
		readFired = true
		dispatched++
	}

	// Re-read after any handler call: the table may have been resized or
	// the slot mutated by the handler itself.
	fe = r.fileEventOrNil(fd)
	if fe == nil {
		return dispatched
	}
	effective = fe.mask & firedMask
	if effective&Writable != 0 && (!readFired || differentHandlers(fe.read, fe.write)) {
		r.invokeFileHandler(fe.write, fd, firedMask)
		dispatched++
	}

	if invert {
		fe = r.fileEventOrNil(fd)
		if fe == nil {
			return dispatched
		}
		effective = fe.mask & firedMask
		if effective&Readable != 0 && (dispatched == 0 || differentHandlers(fe.read, fe.write)) {
			r.invokeFileHandler(fe.read, fd, firedMask)
			dispatched++
		}
	}
	return dispatched
}

func (r *Reactor) fileEventOrNil(fd int) *fileEvent {
	if fd < 0 || fd >= r.setsize {
		return nil
	}
	fe := &r.events[fd]
	if fe.mask == None {
		return nil
	}
	return fe
}

func differentHandlers(a, b FileHandler) bool {
	if a == nil || b == nil {
		return true
	}
	return reflect.ValueOf(a).Pointer() != reflect.ValueOf(b).Pointer()
}

func (r *Reactor) invokeFileHandler(h FileHandler, fd int, fired Mask) {
	if h == nil {
		return
	}
	if r.opts.ignoreHandlerPanic {
		defer func() {
			if p := recover(); p != nil {
				r.opts.logger.Errorf("reactor: file handler fd=%d panicked: %v", fd, p)
				r.countMetric(metrics.HandlerPanicsRecovered, 1)
			}
		}()
	}
	user := r.events[fd].user
	h(r, fd, user, fired)
}
