package matchmaking

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"
)

// storeCall выполняет операцию хранилища с таймаутом на каждую попытку и
// ограниченным числом повторов. Доменные ошибки не повторяются.
func storeCall[T any](ctx context.Context, e *Engine, op func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
		defer cancel()

		v, err := op(callCtx)
		if err != nil && isDomainError(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(e.newBackOff()),
		backoff.WithMaxTries(uint(e.opts.StoreRetries)),
	)
	if err != nil && !isDomainError(err) {
		return v, errors.Join(ErrStoreUnavailable, err)
	}
	return v, err
}

func storeCallErr(ctx context.Context, e *Engine, op func(context.Context) error) error {
	_, err := storeCall(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func (e *Engine) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.RetryInterval
	b.MaxInterval = 10 * e.opts.RetryInterval
	return b
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrConflictLost) ||
		errors.Is(err, ErrInvalidPairing)
}
