package reactor

import "trpc.group/trpc-go/reactor/log"

// Option configures a Reactor at construction time.
type Option func(*options)

type options struct {
	logger             log.Logger
	ignoreHandlerPanic bool
	metricsEnabled     bool
}

func defaultOptions() *options {
	return &options{
		logger:         log.Default,
		metricsEnabled: true,
	}
}

// WithLogger overrides the logger used for backend setup failures, dropped
// OS errors, and (if WithIgnoreHandlerPanic is set) recovered handler
// panics. Defaults to log.Default.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithIgnoreHandlerPanic makes the reactor recover a panicking file or time
// handler instead of letting the panic unwind through ProcessEvents. A
// recovered file handler is treated as if it had simply returned; a
// recovered time handler's timer is tombstoned. The panic is always logged
// at Error level first. Default is off: handlers are trusted code within
// one process, and silently swallowing a bug would contradict the reactor's
// otherwise deterministic semantics.
func WithIgnoreHandlerPanic(ignore bool) Option {
	return func(o *options) {
		o.ignoreHandlerPanic = ignore
	}
}

// WithMetrics enables or disables metrics counter increments. Counting is
// not free on a hot loop; disable it once a deployment has confirmed it
// doesn't need the numbers. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}
