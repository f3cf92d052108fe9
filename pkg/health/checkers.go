package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is implemented by pgxpool.Pool and the Redis cart store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports p unhealthy when its Ping fails.
func PingCheck(p Pinger) Func {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck flags a goroutine leak once more than threshold
// goroutines are running.
func GoroutineCountCheck(threshold int) Func {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
