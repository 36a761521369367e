package reactor

// Stats is a point-in-time snapshot of a single Reactor's internal state,
// distinct from the process-wide counters in package metrics. It answers
// "what does this reactor look like right now" rather than "how much
// traffic has this process handled".
type Stats struct {
	// SetSize is the reactor's current capacity.
	SetSize int
	// MaxFD is the highest fd with a non-empty registered interest, or -1
	// if none is registered.
	MaxFD int
	// RegisteredFiles is the number of fds with a non-empty registered
	// interest.
	RegisteredFiles int
	// PendingTimers is the number of live (non-tombstoned) timers.
	PendingTimers int
	// LastDispatched is the number of file and timer handlers invoked by
	// the most recent ProcessEvents call.
	LastDispatched int
	// BackendName is the compiled-in polling primitive's static name.
	BackendName string
}

// Stats returns a snapshot of the reactor's current state. It walks the
// file-event table and timer list, so callers polling it at high frequency
// should be mindful of setsize.
func (r *Reactor) Stats() Stats {
	registered := 0
	for i := range r.events {
		if r.events[i].mask != None {
			registered++
		}
	}
	pending := 0
	for te := r.timeHead; te != nil; te = te.next {
		if te.id != tombstoneID {
			pending++
		}
	}
	return Stats{
		SetSize:         r.setsize,
		MaxFD:           r.maxfd,
		RegisteredFiles: registered,
		PendingTimers:   pending,
		LastDispatched:  r.stats.LastDispatched,
		BackendName:     r.backend.Name(),
	}
}
