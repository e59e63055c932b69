package wakeup

import (
	"RC/utils"
	"context"
	"fmt"
	"time"
)

// SuspendUntil re-checks waiting every interval, or as soon as wake fires,
// and returns once it reports false. wake may be nil. A done ctx ends the
// loop with ctx.Err(); a positive timeout ends it with utils.ErrPeerLost.
func SuspendUntil(ctx context.Context, waiting func() bool, wake <-chan struct{}, interval time.Duration, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for waiting() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			if !waiting() {
				return nil
			}
			return fmt.Errorf("%w: no wake within %v", utils.ErrPeerLost, timeout)
		case <-wake:
		case <-ticker.C:
		}
	}
	return nil
}

// SuspendForever loops until ctx is done.
func SuspendForever(ctx context.Context, interval time.Duration) error {
	return SuspendUntil(ctx, func() bool { return true }, nil, interval, 0)
}
