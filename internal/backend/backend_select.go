//go:build !linux && !freebsd && !dragonfly && !darwin && !netbsd && !openbsd && !solaris
// +build !linux,!freebsd,!dragonfly,!darwin,!netbsd,!openbsd,!solaris

package backend

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// select is the degrade-of-last-resort backend: O(setsize) per Poll call,
// bounded by FD_SETSIZE. It exists so the reactor still builds on any
// POSIX target that lacks a dedicated readiness primitive.

func newBackend(setsize int) (Backend, error) {
	return &selectBackend{masks: make(map[int]Mask, setsize)}, nil
}

type selectBackend struct {
	masks map[int]Mask
}

// Name implements Backend.
func (s *selectBackend) Name() string { return "select" }

// Resize implements Backend. select's fd_set is sized by FD_SETSIZE, not by
// anything the caller controls, so there is nothing to do here beyond
// accepting the request.
func (s *selectBackend) Resize(newSize int) error {
	return nil
}

// AddInterest implements Backend.
func (s *selectBackend) AddInterest(fd int, mask Mask) error {
	if fd >= unix.FD_SETSIZE {
		return errors.Errorf("backend: fd %d exceeds FD_SETSIZE %d", fd, unix.FD_SETSIZE)
	}
	s.masks[fd] |= mask
	return nil
}

// RemoveInterest implements Backend.
func (s *selectBackend) RemoveInterest(fd int, mask Mask) error {
	cur, ok := s.masks[fd]
	if !ok {
		return nil
	}
	want := cur &^ mask
	if want == None {
		delete(s.masks, fd)
		return nil
	}
	s.masks[fd] = want
	return nil
}

// Poll implements Backend.
func (s *selectBackend) Poll(dst []Event, timeoutMS int) ([]Event, error) {
	var rset, wset unix.FdSet
	maxfd := -1
	for fd, mask := range s.masks {
		if mask&Read != 0 {
			fdSet(&rset, fd)
		}
		if mask&Write != 0 {
			fdSet(&wset, fd)
		}
		if fd > maxfd {
			maxfd = fd
		}
	}
	if maxfd < 0 {
		return dst, nil
	}
	var tv *unix.Timeval
	if timeoutMS >= 0 {
		t := unix.NsecToTimeval(int64(timeoutMS) * int64(1e6))
		tv = &t
	}
	n, err := unix.Select(maxfd+1, &rset, &wset, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, errors.Wrap(os.NewSyscallError("select", err), "backend: poll")
	}
	if n <= 0 {
		return dst, nil
	}
	for fd := range s.masks {
		var mask Mask
		if fdIsSet(&rset, fd) {
			mask |= Read
		}
		if fdIsSet(&wset, fd) {
			mask |= Write
		}
		if mask != None {
			dst = append(dst, Event{FD: fd, Mask: mask})
		}
	}
	return dst, nil
}

// Destroy implements Backend.
func (s *selectBackend) Destroy() error {
	return nil
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
