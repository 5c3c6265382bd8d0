// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned by Poll when the ceiling elapses before the
// condition reports done.
var ErrPollTimeout = errors.New("poll timed out")

// Poll calls fn until it reports done, returns an error, or timeout elapses.
// Attempts are spaced by a fixed interval, and the context passed to fn
// expires at the ceiling so a slow attempt cannot outlast it. A cancelled
// parent context is returned as ctx.Err(); an exhausted ceiling is returned
// as ErrPollTimeout, also when it ends an attempt in flight.
func Poll(ctx context.Context, interval, timeout time.Duration, fn func(ctx context.Context) (done bool, err error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(timeout)

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	for {
		done, err := fn(attemptCtx)
		if err != nil {
			if ctx.Err() == nil && attemptCtx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrPollTimeout, err)
			}
			return err
		}
		if done {
			return nil
		}
		if timeout > 0 && time.Now().Add(interval).After(deadline) {
			return ErrPollTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
