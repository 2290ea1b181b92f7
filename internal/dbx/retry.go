package dbx

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/sethvargo/go-retry"
)

// DefaultConflictRetries bounds RetryOnConflict when callers pass zero.
const DefaultConflictRetries = 50

// RetryOnConflict re-runs fn with jittered exponential backoff while it
// returns common.ErrVersionConflict. Any other error, or success, stops the
// loop. When retries run out the last conflict error is returned.
//
// fn must reload whatever state it compares against on every attempt.
func RetryOnConflict(ctx context.Context, retries uint64, fn func(ctx context.Context) error) error {
	if retries == 0 {
		retries = DefaultConflictRetries
	}

	b := retry.NewExponential(time.Millisecond)
	b = retry.WithCappedDuration(25*time.Millisecond, b)
	b = retry.WithJitterPercent(50, b)
	b = retry.WithMaxRetries(retries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, common.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}
