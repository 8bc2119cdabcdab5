package db

import (
	"context"
	"time"
)

// OpContext bounds a single store call. A parent deadline that is already
// tighter stays in effect; a non-positive timeout leaves the context as is.
func OpContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
