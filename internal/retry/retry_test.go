package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errFlaky  = errors.New("flaky")
	errBroken = errors.New("broken")
)

func fastPolicy(attempts uint) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2, Jitter: 0}
}

func classifyTestErr(err error) (bool, time.Duration) {
	return errors.Is(err, errFlaky), 0
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(5), classifyTestErr, zerolog.Nop(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), classifyTestErr, zerolog.Nop(), func(context.Context) (int, error) {
		calls++
		return 0, errBroken
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errBroken)
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(4), classifyTestErr, zerolog.Nop(), func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})

	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	wait := 30 * time.Millisecond
	classify := func(err error) (bool, time.Duration) { return true, wait }

	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), fastPolicy(2), classify, zerolog.Nop(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errFlaky
		}
		return 1, nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), wait)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, classifyTestErr, zerolog.Nop(), func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classify := func(err error) (bool, time.Duration) { return true, time.Hour }

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, fastPolicy(5), classify, zerolog.Nop(), func(context.Context) (int, error) {
			calls++
			return 0, errFlaky
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}
