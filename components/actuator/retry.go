package actuator

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/gatekeeper/logging"
)

type retrying struct {
	Actuator
	attempts int
	backoff  time.Duration
	logger   logging.Logger
}

// WithRetry wraps a so that a failed trigger is retried up to attempts more times, sleeping
// attempt*backoff before each retry. With attempts <= 0 the actuator is returned unchanged.
func WithRetry(a Actuator, attempts int, backoff time.Duration, logger logging.Logger) Actuator {
	if attempts <= 0 {
		return a
	}
	return &retrying{Actuator: a, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *retrying) Trigger(ctx context.Context) error {
	var errs error
	for attempt := 0; attempt <= r.attempts; attempt++ {
		if attempt > 0 {
			r.logger.CDebugw(ctx, "retrying actuator trigger", "attempt", attempt, "error", errs)
			if !utils.SelectContextOrWait(ctx, time.Duration(attempt)*r.backoff) {
				return multierr.Combine(errs, ctx.Err())
			}
		}
		err := r.Actuator.Trigger(ctx)
		if err == nil {
			return nil
		}
		errs = multierr.Combine(errs, err)
	}
	return errs
}
