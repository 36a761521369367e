package reactor

import (
	"trpc.group/trpc-go/reactor/internal/backend"
	"trpc.group/trpc-go/reactor/metrics"
)

// fileEvent is the per-fd slot in the dense file-event table. mask == None
// means the slot is free and its handlers must not be invoked.
type fileEvent struct {
	mask  Mask
	read  FileHandler
	write FileHandler
	user  interface{}
}

// RegisterFile ORs mask into fd's registered interest, wiring handler into
// the read and/or write slot according to which bits mask carries (the same
// handler may fill both slots). It fails with ErrRange if fd >= SetSize().
func (r *Reactor) RegisterFile(fd int, mask Mask, handler FileHandler, user interface{}) error {
	if fd < 0 || fd >= r.setsize {
		return ErrRange
	}
	fe := &r.events[fd]
	fe.mask |= mask
	if mask&Readable != 0 {
		fe.read = handler
	}
	if mask&Writable != 0 {
		fe.write = handler
	}
	fe.user = user
	if fd > r.maxfd {
		r.maxfd = fd
	}
	if err := r.backend.AddInterest(fd, toBackendMask(fe.mask)); err != nil {
		return wrapBackendErr(err)
	}
	r.countMetric(metrics.FilesRegistered, 1)
	return nil
}

// UnregisterFile clears the bits in mask from fd's registered interest. It
// silently no-ops if fd is out of range or already free. Clearing Writable
// implicitly clears Barrier too, since Barrier only has meaning alongside a
// registered write interest.
func (r *Reactor) UnregisterFile(fd int, mask Mask) {
	if fd < 0 || fd >= r.setsize {
		return
	}
	fe := &r.events[fd]
	if fe.mask == None {
		return
	}
	if mask&Writable != 0 {
		mask |= Barrier
	}
	fe.mask &^= mask
	if mask&Readable != 0 {
		fe.read = nil
	}
	if mask&Writable != 0 {
		fe.write = nil
	}
	if err := r.backend.RemoveInterest(fd, toBackendMask(mask)); err != nil {
		r.logf("reactor: remove_interest fd=%d mask=%s failed: %v", fd, mask, err)
	}
	if fe.mask == None {
		fe.user = nil
		if fd == r.maxfd {
			r.recomputeMaxFD()
		}
	}
	r.countMetric(metrics.FilesUnregistered, 1)
}

// FileInterest returns the currently registered mask for fd, or None if fd
// is out of range or unregistered.
func (r *Reactor) FileInterest(fd int) Mask {
	if fd < 0 || fd >= r.setsize {
		return None
	}
	return r.events[fd].mask
}

func (r *Reactor) recomputeMaxFD() {
	for fd := r.maxfd - 1; fd >= 0; fd-- {
		if r.events[fd].mask != None {
			r.maxfd = fd
			return
		}
	}
	r.maxfd = -1
}

func toBackendMask(m Mask) backend.Mask {
	var bm backend.Mask
	if m&Readable != 0 {
		bm |= backend.Read
	}
	if m&Writable != 0 {
		bm |= backend.Write
	}
	return bm
}

func fromBackendMask(bm backend.Mask) Mask {
	var m Mask
	if bm&backend.Read != 0 {
		m |= Readable
	}
	if bm&backend.Write != 0 {
		m |= Writable
	}
	return m
}
