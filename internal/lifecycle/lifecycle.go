// Package lifecycle holds the process-wide draining flag.
package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown flips the draining flag. main sets it on SIGTERM/SIGINT before stopping the
// scheduler and the HTTP server.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether /health should answer shutting-down.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
