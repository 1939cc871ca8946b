package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultConnectWait предел ожидания, если maxWait не положительный.
// Нулевой MaxElapsedTime в backoff означает бесконечные повторы.
const DefaultConnectWait = 30 * time.Second

// WaitReady повторяет ping с экспоненциальной задержкой, пока хранилище
// не ответит или не истечёт maxWait.
func WaitReady(ctx context.Context, name string, maxWait time.Duration, ping func(context.Context) error) error {
	bo := newConnectBackOff(maxWait)

	attempt := 0
	op := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := ping(pingCtx); err != nil {
			slog.Warn("datastore not ready", slog.String("store", name), slog.Int("attempt", attempt), slog.Any("error", err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("op=session.wait_ready store=%s: %w", name, err)
	}
	return nil
}

func newConnectBackOff(maxWait time.Duration) *backoff.ExponentialBackOff {
	if maxWait <= 0 {
		maxWait = DefaultConnectWait
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = maxWait
	return bo
}
