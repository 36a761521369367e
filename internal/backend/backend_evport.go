//go:build solaris
// +build solaris

package backend

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// The pack this module was grounded on carries no Solaris poller; this
// backend is written fresh in the same idiom as backend_epoll.go and
// backend_kqueue.go (same struct shape, same pkg/errors wrapping, same
// CLOEXEC discipline on creation).

func newBackend(setsize int) (Backend, error) {
	fd, err := unix.PortCreate()
	if err != nil {
		return nil, errors.Wrap(os.NewSyscallError("port_create", err), "backend: allocation")
	}
	// Provide FD_CLOEXEC flag for consistency with the Go runtime.
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(os.NewSyscallError("fcntl", err), "backend: allocation")
	}
	return &evport{
		fd:    fd,
		masks: make(map[int]Mask, setsize),
		n:     defaultEventCount(setsize),
	}, nil
}

func defaultEventCount(setsize int) int {
	if setsize < 64 {
		return 64
	}
	if setsize > 1024 {
		return 1024
	}
	return setsize
}

type evport struct {
	fd    int
	masks map[int]Mask
	n     int
}

// Name implements Backend.
func (e *evport) Name() string { return "evport" }

// Resize implements Backend. Event ports are associated per fd, not
// pre-sized, so resize only adjusts how many events Poll asks for per call.
func (e *evport) Resize(newSize int) error {
	if n := defaultEventCount(newSize); n > e.n {
		e.n = n
	}
	return nil
}

// AddInterest implements Backend.
func (e *evport) AddInterest(fd int, mask Mask) error {
	cur := e.masks[fd]
	want := cur | mask
	if err := e.associate(fd, want); err != nil {
		return errors.Wrapf(err, "backend: fd %d mask %s", fd, mask)
	}
	e.masks[fd] = want
	return nil
}

// RemoveInterest implements Backend.
func (e *evport) RemoveInterest(fd int, mask Mask) error {
	cur, ok := e.masks[fd]
	if !ok {
		return nil
	}
	want := cur &^ mask
	if want == None {
		delete(e.masks, fd)
		return os.NewSyscallError("port_dissociate", unix.PortDissociate(e.fd, unix.PORT_SOURCE_FD, fd))
	}
	if err := e.associate(fd, want); err != nil {
		return errors.Wrapf(err, "backend: fd %d mask %s", fd, mask)
	}
	e.masks[fd] = want
	return nil
}

func (e *evport) associate(fd int, mask Mask) error {
	var events int
	if mask&Read != 0 {
		events |= unix.POLLIN
	}
	if mask&Write != 0 {
		events |= unix.POLLOUT
	}
	return os.NewSyscallError("port_associate", unix.PortAssociate(e.fd, unix.PORT_SOURCE_FD, fd, events, nil))
}

// Poll implements Backend.
func (e *evport) Poll(dst []Event, timeoutMS int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMS >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMS) * int64(1e6))
		ts = &t
	}
	events := make([]unix.PortEvent, e.n)
	got, err := unix.PortGetn(e.fd, events, 1, ts)
	if err != nil {
		if err == unix.ETIME || err == unix.EINTR {
			return dst, nil
		}
		return dst, errors.Wrap(os.NewSyscallError("port_getn", err), "backend: poll")
	}
	for i := 0; i < got; i++ {
		pe := events[i]
		fd := int(pe.Object)
		var mask Mask
		if pe.Events&uint32(unix.POLLIN) != 0 {
			mask |= Read
		}
		if pe.Events&uint32(unix.POLLOUT) != 0 {
			mask |= Write
		}
		if pe.Events&uint32(unix.POLLHUP|unix.POLLERR) != 0 {
			mask |= Read | Write
		}
		dst = append(dst, Event{FD: fd, Mask: mask})
		// Event port interest is one-shot: re-associate so the fd keeps
		// reporting the readiness the caller is still interested in.
		if want, ok := e.masks[fd]; ok {
			_ = e.associate(fd, want)
		}
	}
	return dst, nil
}

// Destroy implements Backend.
func (e *evport) Destroy() error {
	return errors.Wrap(os.NewSyscallError("close", unix.Close(e.fd)), "backend: destroy")
}
