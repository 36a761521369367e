// Command reactor-echo is a minimal TCP echo server built directly on
// package reactor, demonstrating listener accept, per-connection
// registration, and graceful shutdown via a timer-driven deadline. With
// -wal set it switches to a synchronous Barrier-ordered mode that journals
// every echoed payload to a write-ahead log fsynced from before_sleep,
// demonstrating write-before-read dispatch ordering end to end.
package main

import (
	"flag"
	"io"
	"os"

	goreuseport "github.com/kavu/go_reuseport"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sys/unix"
	"trpc.group/trpc-go/reactor"
	"trpc.group/trpc-go/reactor/internal/netutil"
	"trpc.group/trpc-go/reactor/log"
	"trpc.group/trpc-go/reactor/metrics"
)

var (
	addr       = flag.String("addr", "127.0.0.1:9009", "listen address")
	setsize    = flag.Int("setsize", 1024, "reactor capacity")
	runSeconds = flag.Int("run", 0, "exit after this many seconds, 0 means run forever")
	walPath    = flag.String("wal", "", "if set, journal every echoed payload here and run in Barrier mode instead of the default pooled-write mode")
)

// connBufSize is the per-connection scratch buffer size, allocated once at
// accept time and stored in user data rather than per read.
const connBufSize = 4096

func main() {
	flag.Parse()

	pool, err := ants.NewPool(0) // 0 == unbounded, same convention the underlying pool library uses
	if err != nil {
		log.Fatalf("reactor-echo: ants pool: %v", err)
	}
	defer pool.Release()

	var wal *walLog
	if *walPath != "" {
		wal, err = openWAL(*walPath)
		if err != nil {
			log.Fatalf("reactor-echo: open wal: %v", err)
		}
		defer wal.f.Close()
	}

	ln, err := goreuseport.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("reactor-echo: listen %s: %v", *addr, err)
	}
	defer ln.Close()
	log.Infof("reactor-echo: listening on %s", ln.Addr())

	r, err := reactor.New(*setsize, reactor.WithIgnoreHandlerPanic(true))
	if err != nil {
		log.Fatalf("reactor-echo: new reactor: %v", err)
	}
	defer r.Destroy()

	lnFD, err := netutil.GetFD(ln)
	if err != nil {
		log.Fatalf("reactor-echo: get listener fd: %v", err)
	}
	if err := unix.SetNonblock(lnFD, true); err != nil {
		log.Fatalf("reactor-echo: set listener nonblocking: %v", err)
	}

	err = r.RegisterFile(lnFD, reactor.Readable, func(rr *reactor.Reactor, fd int, _ interface{}, _ reactor.Mask) {
		onAcceptable(rr, fd, pool, wal)
	}, nil)
	if err != nil {
		log.Fatalf("reactor-echo: register listener: %v", err)
	}

	r.SetBeforeSleep(func(rr *reactor.Reactor) {
		wal.flush()
		s := rr.Stats()
		log.Debugf("reactor-echo: stats setsize=%d maxfd=%d files=%d timers=%d last=%d",
			s.SetSize, s.MaxFD, s.RegisteredFiles, s.PendingTimers, s.LastDispatched)
	})

	if *runSeconds > 0 {
		r.CreateTimer(int64(*runSeconds)*1000, func(rr *reactor.Reactor, _ int64, _ interface{}) int64 {
			rr.Stop()
			return reactor.NoMore
		}, nil, nil)
	}

	r.Run()
	metrics.ShowMetrics()
}

// walLog is a trivial write-ahead log: every echoed payload is appended to
// f, and f is fsynced once per reactor iteration from before_sleep rather
// than after every write, trading a reply's worth of staleness on crash for
// avoiding one fsync per message.
type walLog struct {
	f     *os.File
	dirty bool
}

func openWAL(path string) (*walLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &walLog{f: f}, nil
}

func (w *walLog) journal(b []byte) {
	if w == nil {
		return
	}
	if _, err := w.f.Write(b); err != nil {
		log.Warnf("reactor-echo: wal write: %v", err)
		return
	}
	w.dirty = true
}

func (w *walLog) flush() {
	if w == nil || !w.dirty {
		return
	}
	if err := w.f.Sync(); err != nil {
		log.Warnf("reactor-echo: wal fsync: %v", err)
	}
	w.dirty = false
}

// conn holds the per-connection state needed by Barrier mode, where writes
// are buffered until the write handler (which Barrier runs before read)
// drains them.
type conn struct {
	buf     []byte
	pending []byte
}

func onAcceptable(r *reactor.Reactor, lnFD int, pool *ants.Pool, wal *walLog) {
	for {
		cfd, _, err := netutil.Accept(lnFD)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			log.Warnf("reactor-echo: accept: %v", err)
			return
		}

		if wal == nil {
			buf := make([]byte, connBufSize)
			err = r.RegisterFile(cfd, reactor.Readable, func(rr *reactor.Reactor, fd int, user interface{}, _ reactor.Mask) {
				onReadablePooled(rr, fd, user.([]byte), pool)
			}, buf)
		} else {
			c := &conn{buf: make([]byte, connBufSize)}
			err = r.RegisterFile(cfd, reactor.Readable, func(rr *reactor.Reactor, fd int, user interface{}, _ reactor.Mask) {
				onReadableBarrier(rr, fd, user.(*conn), wal)
			}, c)
		}
		if err != nil {
			log.Warnf("reactor-echo: register conn fd=%d: %v", cfd, err)
			unix.Close(cfd)
		}
	}
}

// onReadablePooled is the default mode: each read's echo is written back
// from an ants worker goroutine, off the reactor thread. This only ever
// touches the raw fd, never reactor state, so it is safe despite running
// concurrently with the loop.
func onReadablePooled(r *reactor.Reactor, fd int, buf []byte, pool *ants.Pool) {
	n, err := unix.Read(fd, buf)
	if err != nil && err != unix.EAGAIN {
		closeConn(r, fd)
		return
	}
	if err == unix.EAGAIN {
		return
	}
	if n == 0 {
		closeConn(r, fd)
		return
	}
	payload := append([]byte(nil), buf[:n]...)
	_ = pool.Submit(func() {
		if werr := writeAll(fd, payload); werr != nil && werr != io.EOF {
			log.Warnf("reactor-echo: write fd=%d: %v", fd, werr)
		}
	})
}

// onReadableBarrier journals the payload, buffers it for the write handler,
// and registers Writable|Barrier so that, once the socket is also writable,
// the write handler drains the reply before this read handler runs again.
func onReadableBarrier(r *reactor.Reactor, fd int, c *conn, wal *walLog) {
	n, err := unix.Read(fd, c.buf)
	if err != nil && err != unix.EAGAIN {
		closeConn(r, fd)
		return
	}
	if err == unix.EAGAIN {
		return
	}
	if n == 0 {
		closeConn(r, fd)
		return
	}
	wal.journal(c.buf[:n])
	c.pending = append(c.pending, c.buf[:n]...)
	if err := r.RegisterFile(fd, reactor.Writable|reactor.Barrier, func(rr *reactor.Reactor, wfd int, user interface{}, _ reactor.Mask) {
		onWritableBarrier(rr, wfd, user.(*conn))
	}, c); err != nil {
		log.Warnf("reactor-echo: register write interest fd=%d: %v", fd, err)
		closeConn(r, fd)
	}
}

func onWritableBarrier(r *reactor.Reactor, fd int, c *conn) {
	n, err := unix.Write(fd, c.pending)
	if err != nil && err != unix.EAGAIN {
		closeConn(r, fd)
		return
	}
	c.pending = c.pending[n:]
	if len(c.pending) == 0 {
		// Clearing Writable also clears Barrier (fileevent.go), leaving the
		// connection purely Readable until the next payload arrives.
		r.UnregisterFile(fd, reactor.Writable)
	}
}

func writeAll(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := unix.Write(fd, b)
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			return err
		}
		b = b[n:]
	}
	return nil
}

func closeConn(r *reactor.Reactor, fd int) {
	r.UnregisterFile(fd, reactor.Readable|reactor.Writable)
	unix.Close(fd)
}
