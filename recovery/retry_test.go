package recovery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"

	"github.com/Esclender/dai-assistant/types"
)

// fastRetryOptions compresses the backoff unit so tests finish in
// milliseconds while keeping the attempt arithmetic intact.
func fastRetryOptions(opts ...types.RetryOption) *types.RetryOptions {
	options := types.NewRetryOptions()
	options.BackoffUnit = time.Millisecond
	for _, opt := range opts {
		opt(options)
	}
	return options
}

type flakyOp struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (f *flakyOp) run(ctx context.Context) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return fmt.Sprintf("ok after %d calls", f.calls), nil
}

func (f *flakyOp) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRetryFirstAttemptSucceeds(t *testing.T) {
	op := &flakyOp{}
	retryer := NewRetryer(fastRetryOptions())

	result, err := retryer.Do(context.Background(), op.run)
	assert.Nil(t, err)
	assert.Equal(t, "ok after 1 calls", result)
	assert.Equal(t, 1, op.callCount())
}

func TestRetrySucceedsAfterRetries(t *testing.T) {
	op := &flakyOp{failures: 2, err: types.NewTimeoutErrorf("llm request timed out")}
	retryer := NewRetryer(fastRetryOptions(
		types.WithMaxAttempts(3),
		types.WithBackoffFactor(2),
	))

	result, err := retryer.Do(context.Background(), op.run)
	assert.Nil(t, err)
	assert.Equal(t, "ok after 3 calls", result)
	assert.Equal(t, 3, op.callCount())
}

func TestRetryNonRetryableImmediate(t *testing.T) {
	op := &flakyOp{failures: 5, err: types.NewInvalidOutputErrorf("bad json")}
	retryer := NewRetryer(fastRetryOptions())

	_, err := retryer.Do(context.Background(), op.run)
	assert.NotNil(t, err)
	assert.Equal(t, types.KindInvalidOutput, types.KindOf(err))
	assert.Equal(t, 1, op.callCount())
}

func TestRetryExhaustsBudget(t *testing.T) {
	op := &flakyOp{failures: 10, err: types.NewTimeoutErrorf("llm request timed out")}
	retryer := NewRetryer(fastRetryOptions(types.WithMaxAttempts(3)))

	_, err := retryer.Do(context.Background(), op.run)
	assert.NotNil(t, err)
	fmt.Printf("last error: %v\n", err)

	assert.Equal(t, types.KindTimeout, types.KindOf(err))
	assert.Equal(t, 3, op.callCount())
}

func TestRetryWrappedErrorClassified(t *testing.T) {
	op := &flakyOp{
		failures: 1,
		err:      errors.Annotatef(types.NewTimeoutErrorf("late response"), "calling provider"),
	}
	retryer := NewRetryer(fastRetryOptions())

	result, err := retryer.Do(context.Background(), op.run)
	assert.Nil(t, err)
	assert.Equal(t, "ok after 2 calls", result)
	assert.Equal(t, 2, op.callCount())
}

func TestRetryCustomKinds(t *testing.T) {
	retryer := NewRetryer(fastRetryOptions(
		types.WithRetryableKinds(types.KindInvalidOutput),
	))

	invalid := &flakyOp{failures: 1, err: types.NewInvalidOutputErrorf("bad json")}
	result, err := retryer.Do(context.Background(), invalid.run)
	assert.Nil(t, err)
	assert.Equal(t, "ok after 2 calls", result)

	timeout := &flakyOp{failures: 5, err: types.NewTimeoutErrorf("slow")}
	_, err = retryer.Do(context.Background(), timeout.run)
	assert.NotNil(t, err)
	assert.Equal(t, 1, timeout.callCount())
}

func TestRetryUserInterruptNeverRetried(t *testing.T) {
	op := &flakyOp{failures: 5, err: types.NewUserInterruptErrorf("ctrl-c")}
	retryer := NewRetryer(fastRetryOptions(
		types.WithRetryableKinds(types.KindUserInterrupt, types.KindTimeout),
	))

	_, err := retryer.Do(context.Background(), op.run)
	assert.NotNil(t, err)
	assert.Equal(t, types.KindUserInterrupt, types.KindOf(err))
	assert.Equal(t, 1, op.callCount())
}

func TestRetryCanceledDuringBackoff(t *testing.T) {
	op := &flakyOp{failures: 10, err: types.NewTimeoutErrorf("slow")}
	retryer := NewRetryer(fastRetryOptions(
		types.WithBackoffUnit(200 * time.Millisecond),
	))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := retryer.Do(ctx, op.run)
	assert.NotNil(t, err)
	assert.Equal(t, types.KindUserInterrupt, types.KindOf(err))
	assert.Equal(t, 1, op.callCount())
}

func TestRetryInvalidOptions(t *testing.T) {
	retryer := NewRetryer(&types.RetryOptions{MaxAttempts: 0})
	_, err := retryer.Do(context.Background(), (&flakyOp{}).run)
	assert.NotNil(t, err)
	assert.True(t, errors.IsBadRequest(err))

	retryer = NewRetryer(&types.RetryOptions{MaxAttempts: 3, BackoffFactor: -1})
	_, err = retryer.Do(context.Background(), (&flakyOp{}).run)
	assert.NotNil(t, err)
	assert.True(t, errors.IsBadRequest(err))
}

func TestRetryNilOptionsUsesDefaults(t *testing.T) {
	retryer := NewRetryer(nil)
	assert.Equal(t, 3, retryer.options.MaxAttempts)
	assert.Equal(t, 1.5, retryer.options.BackoffFactor)
	assert.Equal(t, types.DefaultRetryableKinds(), retryer.options.RetryableKinds)
}

func TestBackoffSchedule(t *testing.T) {
	retryer := NewRetryer(fastRetryOptions(
		types.WithBackoffFactor(2),
		types.WithBackoffUnit(time.Second),
	))
	assert.Equal(t, time.Second, retryer.backoff(1))
	assert.Equal(t, 2*time.Second, retryer.backoff(2))
	assert.Equal(t, 4*time.Second, retryer.backoff(3))

	retryer = NewRetryer(fastRetryOptions(types.WithBackoffUnit(time.Second)))
	assert.Equal(t, time.Second, retryer.backoff(1))
	assert.Equal(t, 1500*time.Millisecond, retryer.backoff(2))
	assert.Equal(t, 2250*time.Millisecond, retryer.backoff(3))
}
