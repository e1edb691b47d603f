// Package lifecycle holds process-wide start/stop settings shared by fx hooks.
package lifecycle

import "time"

// DefaultTimeout bounds every OnStart/OnStop hook (DB ping, redis ping, HTTP shutdown).
const DefaultTimeout = 10 * time.Second
