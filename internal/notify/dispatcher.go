package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"uptrack/internal/metrics"
)

// Dispatcher runs side effects after the primary write has committed. Each
// job gets its own goroutine and a bounded context that is not tied to the
// request. Failures are logged and counted, never returned.
type Dispatcher struct {
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		timeout: timeout,
		log:     log.With().Str("component", "dispatcher").Logger(),
		metrics: m,
	}
}

// Go schedules fn. kind labels logs and metrics.
func (d *Dispatcher) Go(kind string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := run(ctx, fn)
		outcome := metrics.OutcomeOK
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			outcome = metrics.OutcomeTimeout
		default:
			outcome = metrics.OutcomeError
		}
		if d.metrics != nil {
			d.metrics.SideEffects.WithLabelValues(kind, outcome).Inc()
		}
		if err != nil {
			d.log.Warn().Err(err).Str("kind", kind).Str("outcome", outcome).Msg("side effect failed")
		}
	}()
}

// Notify sends msg through n in the background.
func (d *Dispatcher) Notify(kind string, n Notifier, msg Message) {
	d.Go(kind, func(ctx context.Context) error {
		return n.Send(ctx, msg)
	})
}

// Wait blocks until all scheduled jobs have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
