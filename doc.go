// Package reactor implements a single-threaded, event-driven reactor: it
// multiplexes OS readiness notifications for file descriptors together with
// a list of timers and dispatches callbacks when either becomes ready.
//
// The reactor owns no sockets of its own. Callers register file descriptors
// obtained elsewhere (a TCP listener, a pipe, an eventfd) and timers, then
// drive the loop with Run or step it manually with ProcessEvents. A single
// Reactor value must only ever be touched from the goroutine running its
// loop; calling into it from another goroutine is undefined, matching the
// concurrency model of the OS pollers it wraps.
package reactor
