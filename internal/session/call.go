package session

import (
	"context"
	"fmt"
)

// Call invokes an authorized operation. Success and non-401 failures are
// returned unchanged. A 401 is handed to the Manager; once the session has
// been refreshed op is issued again and its result returned. If the session
// could not be refreshed the error wraps ErrSessionExpired.
//
// A re-issued op that fails with 401 again goes through the same protocol;
// only ctx bounds the number of rounds.
func Call[T any](ctx context.Context, m *Manager, op func(ctx context.Context) (T, error)) (T, error) {
	for {
		v, err := op(ctx)
		if err == nil || !IsUnauthorized(err) {
			return v, err
		}

		m.logger.Debug("operation unauthorized, deferring to session manager")

		wake := make(chan struct{})
		f := m.HandleUnauthorized(ctx, func() { close(wake) })

		select {
		case <-wake:
			continue
		case <-f.Done():
			// On success wake is closed before Done; prefer it.
			select {
			case <-wake:
				continue
			default:
			}

			var zero T

			return zero, f.Err()
		case <-ctx.Done():
			var zero T

			return zero, fmt.Errorf("session: waiting for refresh: %w", ctx.Err())
		}
	}
}

// Exec is Call for operations without a result value.
func Exec(ctx context.Context, m *Manager, op func(ctx context.Context) error) error {
	_, err := Call(ctx, m, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})

	return err
}
