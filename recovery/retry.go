package recovery

import (
	"context"
	"math"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Esclender/dai-assistant/types"
)

// Operation is a fallible unit of work a Retryer can re-invoke.
type Operation func(ctx context.Context) (any, error)

func NewRetryer(options *types.RetryOptions) *Retryer {
	if options == nil {
		options = types.NewRetryOptions()
	}
	return &Retryer{options: options}
}

/**
 * Retryer re-invokes an operation while its failures stay within the
 * configured retryable kinds. The first attempt runs immediately;
 * attempt n is followed by a wait of BackoffUnit * BackoffFactor^(n-1)
 * before attempt n+1. A non-retryable failure propagates at once, an
 * exhausted budget propagates the last error, and a wait aborts early
 * when the context is done. Only the calling goroutine is suspended.
 */
type Retryer struct {
	options *types.RetryOptions
}

func (r *Retryer) Do(ctx context.Context, op Operation) (any, error) {
	maxAttempts := r.options.MaxAttempts
	if maxAttempts < 1 {
		return nil, errors.BadRequestf("max attempts must be >= 1, got %d", maxAttempts)
	}
	if r.options.BackoffFactor <= 0 {
		return nil, errors.BadRequestf("backoff factor must be > 0, got %v", r.options.BackoffFactor)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !r.retryable(err) {
			return nil, errors.Trace(err)
		}
		if attempt == maxAttempts {
			log.Errorf("operation failed after %d attempts: %v", maxAttempts, err)
			break
		}

		wait := r.backoff(attempt)
		log.Infof("retry attempt %d/%d after %v", attempt, maxAttempts, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, errors.Trace(ctx.Err())
		}
	}
	return nil, errors.Trace(lastErr)
}

// backoff is the wait after the given 1-indexed attempt.
func (r *Retryer) backoff(attempt int) time.Duration {
	units := math.Pow(r.options.BackoffFactor, float64(attempt-1))
	return time.Duration(units * float64(r.options.BackoffUnit))
}

func (r *Retryer) retryable(err error) bool {
	kind := types.KindOf(err)
	// user interruption is never retried, whatever the configuration
	if kind == types.KindUserInterrupt {
		return false
	}
	for _, retryableKind := range r.options.RetryableKinds {
		if kind == retryableKind {
			return true
		}
	}
	return false
}
