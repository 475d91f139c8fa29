package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/clonerr"
)

func TestBucket_AllowsBurstUpToCapacity(t *testing.T) {
	b := NewBucket(5)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Wait(ctx))
	}
}

func TestBucket_BlocksUntilRefill(t *testing.T) {
	b := NewBucket(100)
	fake := time.Now()
	b.now = func() time.Time { return fake }

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, b.Wait(ctx))
	}

	// Bucket is empty; advance the fake clock enough for one token.
	fake = fake.Add(20 * time.Millisecond)
	require.NoError(t, b.Wait(ctx))
}

func TestBucket_CtxCancelled(t *testing.T) {
	b := NewBucket(1)
	ctx := context.Background()
	require.NoError(t, b.Wait(ctx))

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	err := b.Wait(cancelCtx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(5, 30*time.Second)
	require.True(t, b.Allow())

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		require.False(t, b.IsOpen())
	}
	b.RecordFailure()
	require.True(t, b.IsOpen())
	require.False(t, b.Allow())
}

func TestBreaker_RecloseAfterCooldown(t *testing.T) {
	b := NewBreaker(2, 10*time.Millisecond)
	b.RecordFailure()
	b.RecordFailure()
	require.True(t, b.IsOpen())

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	require.False(t, b.IsOpen())
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	b := NewBreaker(3, time.Second)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	require.False(t, b.IsOpen())
}

func TestWithBackoff_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), time.Millisecond, 5, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestWithBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), time.Millisecond, 2, func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts) // initial + 2 retries
}

func TestWithBackoff_AuthFailureFailsFastWithoutRetrying(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), time.Millisecond, 5, func(ctx context.Context) error {
		attempts++
		return clonerr.New(clonerr.AuthFailure, "Unauthorized", "bad credential")
	})
	require.Error(t, err)
	require.True(t, clonerr.Is(err, clonerr.AuthFailure))
	require.Equal(t, 1, attempts)
}
