// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_DoneAfterAttempts(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPoll_Timeout(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), 10*time.Millisecond, 35*time.Millisecond, func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.GreaterOrEqual(t, calls, 2)
	assert.LessOrEqual(t, calls, 4)
}

func TestPoll_ErrorStops(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Poll(ctx, 200*time.Millisecond, 5*time.Second, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoll_CeilingBoundsSlowAttempt(t *testing.T) {
	start := time.Now()
	err := Poll(context.Background(), time.Millisecond, 30*time.Millisecond, func(ctx context.Context) (bool, error) {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(5 * time.Second):
			return true, nil
		}
	})
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}
