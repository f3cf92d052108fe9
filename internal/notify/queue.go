package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned by Queue.Send when the buffer is saturated.
	ErrQueueFull = errors.New("notification queue is full")
	// ErrQueueClosed is returned by Queue.Send after Run has returned.
	ErrQueueClosed = errors.New("notification queue is closed")
)

// QueueConfig configures asynchronous delivery.
type QueueConfig struct {
	Size         int
	Workers      int
	Attempts     int
	Backoff      time.Duration
	DrainTimeout time.Duration
}

func (c *QueueConfig) setDefaults() {
	if c.Size <= 0 {
		c.Size = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
}

type job struct {
	n  Notification
	lg *zap.Logger
}

// Queue is a Sender that hands notifications to background workers so the
// caller never waits on delivery.
type Queue struct {
	next    Sender
	cfg     QueueConfig
	jobs    chan job
	closed  atomic.Bool
	outcome metric.Int64Counter
}

// NewQueue creates a Queue delivering through next. Call Run to start the
// workers.
func NewQueue(next Sender, cfg QueueConfig, mp metric.MeterProvider) (*Queue, error) {
	cfg.setDefaults()
	outcome, err := mp.Meter("boutique/notify").Int64Counter("notify.deliveries",
		metric.WithDescription("Notification delivery outcomes"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	return &Queue{
		next:    next,
		cfg:     cfg,
		jobs:    make(chan job, cfg.Size),
		outcome: outcome,
	}, nil
}

// Send enqueues n without blocking.
func (q *Queue) Send(ctx context.Context, n Notification) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job{n: n, lg: zctx.From(ctx)}:
		return nil
	default:
		q.outcome.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "dropped")))
		return ErrQueueFull
	}
}

// Run delivers queued notifications until ctx is done, then drains what is
// left within the drain timeout.
func (q *Queue) Run(ctx context.Context) error {
	defer q.closed.Store(true)

	g, ctx := errgroup.WithContext(ctx)
	for range q.cfg.Workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					q.drain()
					return nil
				case j := <-q.jobs:
					q.deliver(ctx, j)
				}
			}
		})
	}
	return g.Wait()
}

func (q *Queue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case j := <-q.jobs:
			q.deliver(ctx, j)
		default:
			return
		}
	}
}

func (q *Queue) deliver(ctx context.Context, j job) {
	lg := j.lg.With(zap.String("order_id", j.n.OrderID), zap.String("status", j.n.Status))
	ctx = zctx.Base(ctx, lg)

	var err error
retry:
	for attempt := 1; ; attempt++ {
		if err = q.next.Send(ctx, j.n); err == nil {
			q.outcome.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "sent")))
			return
		}
		if attempt >= q.cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			break retry
		case <-time.After(q.cfg.Backoff * time.Duration(attempt)):
		}
	}

	q.outcome.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
	lg.Warn("Notification delivery failed", zap.Error(err))
}
