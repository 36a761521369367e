package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// WaitFD blocks for up to ms milliseconds (ms < 0 meaning forever) waiting
// for fd to become ready for the events named by mask, via a single-shot OS
// poll independent of any Reactor. Error and hang-up conditions are folded
// into Writable, so a caller waiting on a socket discovers a broken
// connection by attempting the write and observing the failure. It neither
// reads nor writes reactor state and may be called from any goroutine.
func WaitFD(fd int, mask Mask, ms int) (Mask, error) {
	var events int16
	if mask&Readable != 0 {
		events |= unix.POLLIN
	}
	if mask&Writable != 0 {
		events |= unix.POLLOUT
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		_, err := unix.Poll(fds, ms)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return None, wrapBackendErr(err)
	}

	revents := fds[0].Revents
	var fired Mask
	if revents&unix.POLLIN != 0 {
		fired |= Readable
	}
	if revents&unix.POLLOUT != 0 {
		fired |= Writable
	}
	if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		fired |= Writable
	}
	return fired, nil
}
