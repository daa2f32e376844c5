package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spinwheel/internal/metrics"
)

// Dispatcher runs notifications as background jobs, detached from the
// request that produced them. Outcomes are only logged and counted.
type Dispatcher struct {
	notifier Notifier
	log      *zap.SugaredLogger
	timeout  time.Duration
	workers  int

	mu     sync.RWMutex
	closed bool
	jobs   chan Notification

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewDispatcher(n Notifier, log *zap.SugaredLogger, workers, queue int, timeout time.Duration) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		notifier: n,
		log:      log,
		timeout:  timeout,
		workers:  workers,
		jobs:     make(chan Notification, queue),
		ctx:      ctx,
		cancel:   cancel,
		group:    &errgroup.Group{},
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.group.Go(func() error {
			for n := range d.jobs {
				metrics.NotificationQueueDepth.Set(float64(len(d.jobs)))
				d.deliver(n)
			}
			return nil
		})
	}
	d.log.Infow("notification dispatcher started", "workers", d.workers, "queue", cap(d.jobs))
}

// Enqueue hands n to the pool without blocking. It reports false when the
// dispatcher is shut down or the queue is full; the job is dropped.
func (d *Dispatcher) Enqueue(n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(n, "dispatcher stopped")
		return false
	}
	select {
	case d.jobs <- n:
		metrics.NotificationQueueDepth.Set(float64(len(d.jobs)))
		return true
	default:
		d.drop(n, "queue full")
		return false
	}
}

// Shutdown stops intake and waits for queued jobs to finish. If ctx expires
// first, in-flight deliveries are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		d.cancel()
		return err
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.notifier.Notify(ctx, n)
	switch {
	case err == nil:
		metrics.Notifications.WithLabelValues("sent").Inc()
		d.log.Infow("coupon email sent", "email", n.Email, "coupon", n.CouponCode, "took", time.Since(start))
	case errors.Is(err, ErrNotConfigured):
		metrics.Notifications.WithLabelValues("not_configured").Inc()
		d.log.Warnw("coupon email skipped", "email", n.Email, "err", err)
	default:
		metrics.Notifications.WithLabelValues("failed").Inc()
		d.log.Errorw("coupon email failed", "email", n.Email, "coupon", n.CouponCode, "err", err)
	}
}

func (d *Dispatcher) drop(n Notification, why string) {
	metrics.Notifications.WithLabelValues("dropped").Inc()
	d.log.Warnw("coupon email dropped", "email", n.Email, "reason", why)
}
