package server

import "time"

// options holds the Supervisor overrides a caller may set via With*
// functions, following the teacher's options.go functional-options shape.
type options struct {
	drainDeadline time.Duration
	idleTimeout   time.Duration
	version       string
}

// Option configures a Supervisor at construction time.
type Option func(*options)

// WithDrainDeadline overrides how long shutdown waits for in-flight
// connections to finish before returning. Connections still open at
// that point are left running; Shutdown does not close them.
func WithDrainDeadline(d time.Duration) Option {
	return func(o *options) { o.drainDeadline = d }
}

// WithIdleTimeout closes a connection that has sent nothing for d. Zero
// (the default) disables idle timeouts.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) { o.idleTimeout = d }
}

// WithVersion overrides the string the "version" command reports.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}
