package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClock_NowIsUTC(t *testing.T) {
	t.Parallel()
	now := New().Now()
	require.Equal(t, time.UTC, now.Location())
	require.WithinDuration(t, time.Now().UTC(), now, time.Second)
}

func TestSleeper_SleepsFullDuration(t *testing.T) {
	t.Parallel()
	start := time.Now()
	require.NoError(t, NewSleeper().Sleep(context.Background(), 20*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleeper_CancelCutsSleepShort(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := NewSleeper().Sleep(ctx, 10*time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestSleeper_NonPositiveDurationReturnsImmediately(t *testing.T) {
	t.Parallel()
	require.NoError(t, NewSleeper().Sleep(context.Background(), 0))
	require.NoError(t, NewSleeper().Sleep(context.Background(), -time.Second))
}
