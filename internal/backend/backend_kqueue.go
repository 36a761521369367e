//go:build freebsd || dragonfly || darwin || netbsd || openbsd
// +build freebsd dragonfly darwin netbsd openbsd

package backend

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func newBackend(setsize int) (Backend, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(os.NewSyscallError("kqueue", err), "backend: allocation")
	}
	// Provide FD_CLOEXEC flag for consistency with the Go runtime.
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(os.NewSyscallError("fcntl", err), "backend: allocation")
	}
	return &kq{
		fd:     fd,
		masks:  make(map[int]Mask, setsize),
		events: make([]unix.Kevent_t, defaultEventCount(setsize)),
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

type kq struct {
	fd     int
	masks  map[int]Mask
	events []unix.Kevent_t
}

// Name implements Backend.
func (k *kq) Name() string { return "kqueue" }

// Resize implements Backend.
func (k *kq) Resize(newSize int) error {
	if n := defaultEventCount(newSize); n > len(k.events) {
		k.events = make([]unix.Kevent_t, n)
	}
	return nil
}

// AddInterest implements Backend.
func (k *kq) AddInterest(fd int, mask Mask) error {
	cur := k.masks[fd]
	var changes []unix.Kevent_t
	if mask&Read != 0 && cur&Read == 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE))
	}
	if mask&Write != 0 && cur&Write == 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE))
	}
	if len(changes) == 0 {
		return nil
	}
	if err := k.apply(changes); err != nil {
		return errors.Wrapf(err, "backend: fd %d mask %s", fd, mask)
	}
	k.masks[fd] = cur | mask
	return nil
}

// RemoveInterest implements Backend.
func (k *kq) RemoveInterest(fd int, mask Mask) error {
	cur, ok := k.masks[fd]
	if !ok {
		return nil
	}
	var changes []unix.Kevent_t
	if mask&Read != 0 && cur&Read != 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, unix.EV_DELETE))
	}
	if mask&Write != 0 && cur&Write != 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE))
	}
	want := cur &^ mask
	if want == None {
		delete(k.masks, fd)
	} else {
		k.masks[fd] = want
	}
	if len(changes) == 0 {
		return nil
	}
	if err := k.apply(changes); err != nil {
		return errors.Wrapf(err, "backend: fd %d mask %s", fd, mask)
	}
	return nil
}

func kevent(fd int, filter int16, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
}

func (k *kq) apply(changes []unix.Kevent_t) error {
	_, err := unix.Kevent(k.fd, changes, nil, nil)
	return os.NewSyscallError("kevent", err)
}

// Poll implements Backend.
func (k *kq) Poll(dst []Event, timeoutMS int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMS >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMS) * int64(1e6))
		ts = &t
	}
	n, err := unix.Kevent(k.fd, nil, k.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, errors.Wrap(os.NewSyscallError("kevent", err), "backend: poll")
	}
	for i := 0; i < n; i++ {
		e := k.events[i]
		fd := int(e.Ident)
		var mask Mask
		if e.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0 {
			mask |= Read | Write
		}
		switch e.Filter {
		case unix.EVFILT_READ:
			mask |= Read
		case unix.EVFILT_WRITE:
			mask |= Write
		}
		dst = append(dst, Event{FD: fd, Mask: mask})
	}
	return dst, nil
}

// Destroy implements Backend.
func (k *kq) Destroy() error {
	return errors.Wrap(os.NewSyscallError("close", unix.Close(k.fd)), "backend: destroy")
}
