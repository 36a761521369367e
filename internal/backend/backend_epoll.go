//go:build linux
// +build linux

package backend

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	rflags = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLPRI
	wflags = unix.EPOLLOUT
)

func newBackend(setsize int) (Backend, error) {
	// Provide EPOLL_CLOEXEC flag for consistency with the Go runtime.
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(os.NewSyscallError("epoll_create1", err), "backend: allocation")
	}
	return &epoll{
		fd:     fd,
		masks:  make(map[int]Mask, setsize),
		events: make([]unix.EpollEvent, defaultEventCount(setsize)),
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

type epoll struct {
	fd     int
	masks  map[int]Mask
	events []unix.EpollEvent
}

// Name implements Backend.
func (ep *epoll) Name() string { return "epoll" }

// Resize implements Backend. epoll_ctl interest is keyed by fd, not by a
// fixed-size table, so resize only needs to grow the scratch buffer used
// to receive fired events; shrinking never has to touch the kernel side.
func (ep *epoll) Resize(newSize int) error {
	if n := defaultEventCount(newSize); n > len(ep.events) {
		ep.events = make([]unix.EpollEvent, n)
	}
	return nil
}

// AddInterest implements Backend.
func (ep *epoll) AddInterest(fd int, mask Mask) error {
	cur := ep.masks[fd]
	want := cur | mask
	if want == cur {
		return nil
	}
	op := unix.EPOLL_CTL_MOD
	if cur == None {
		op = unix.EPOLL_CTL_ADD
	}
	if err := ep.ctl(op, fd, want); err != nil {
		return err
	}
	ep.masks[fd] = want
	return nil
}

// RemoveInterest implements Backend.
func (ep *epoll) RemoveInterest(fd int, mask Mask) error {
	cur, ok := ep.masks[fd]
	if !ok {
		return nil
	}
	want := cur &^ mask
	if want == cur {
		return nil
	}
	if want == None {
		delete(ep.masks, fd)
		return ep.ctl(unix.EPOLL_CTL_DEL, fd, None)
	}
	if err := ep.ctl(unix.EPOLL_CTL_MOD, fd, want); err != nil {
		return err
	}
	ep.masks[fd] = want
	return nil
}

func (ep *epoll) ctl(op int, fd int, mask Mask) error {
	var evt unix.EpollEvent
	evt.Fd = int32(fd)
	if mask&Read != 0 {
		evt.Events |= rflags
	}
	if mask&Write != 0 {
		evt.Events |= wflags
	}
	if op == unix.EPOLL_CTL_DEL {
		return errors.Wrapf(os.NewSyscallError("epoll_ctl del", unix.EpollCtl(ep.fd, op, fd, nil)),
			"backend: fd %d", fd)
	}
	return errors.Wrapf(os.NewSyscallError("epoll_ctl", unix.EpollCtl(ep.fd, op, fd, &evt)),
		"backend: fd %d mask %s", fd, mask)
}

// Poll implements Backend.
func (ep *epoll) Poll(dst []Event, timeoutMS int) ([]Event, error) {
	n, err := unix.EpollWait(ep.fd, ep.events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, errors.Wrap(os.NewSyscallError("epoll_wait", err), "backend: poll")
	}
	for i := 0; i < n; i++ {
		e := ep.events[i]
		fd := int(e.Fd)
		var mask Mask
		if e.Events&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0 {
			mask |= Read | Write
		}
		if e.Events&rflags != 0 {
			mask |= Read
		}
		if e.Events&wflags != 0 {
			mask |= Write
		}
		dst = append(dst, Event{FD: fd, Mask: mask})
	}
	return dst, nil
}

// Destroy implements Backend.
func (ep *epoll) Destroy() error {
	return errors.Wrap(os.NewSyscallError("close", unix.Close(ep.fd)), "backend: destroy")
}
