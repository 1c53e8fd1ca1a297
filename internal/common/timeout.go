package common

import (
	"context"
	"time"
)

// CreateContext returns a context detached from any caller that expires after duration.
// Shutdown paths use it once the signal context is already done.
func CreateContext(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
