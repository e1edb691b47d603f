// Package delivery defines the process entry points started by cmd.
package delivery

import "context"

// Delivery is a long running server owned by the fx application.
type Delivery interface {
	Serve(ctx context.Context) error
}
