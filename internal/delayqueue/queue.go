// Package delayqueue provides an in-process delayed-execution facility with
// deterministic string keys. Scheduling the same key twice replaces the
// pending trigger; cancelling an unknown key is a no-op. Handlers run
// asynchronously with a bounded retry budget, giving at-least-once delivery
// for triggers that fire while the process is alive.
package delayqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler consumes a fired trigger. Returning an error requests a retry.
type Handler func(ctx context.Context, key string, payload any) error

// Options tunes queue behaviour. Zero values select defaults.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Queue schedules delayed triggers keyed by deterministic strings.
type Queue struct {
	mu      sync.Mutex
	pending map[string]*pendingTrigger

	handler    Handler
	logger     *slog.Logger
	now        func() time.Time
	maxRetries int
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type pendingTrigger struct {
	timer   *time.Timer
	payload any
	fireAt  time.Time
}

// New constructs a queue that dispatches fired triggers to handler.
func New(handler Handler, opts Options) *Queue {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		pending:    make(map[string]*pendingTrigger),
		handler:    handler,
		logger:     opts.Logger,
		now:        opts.Now,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Schedule places a trigger for key at fireAt. An existing trigger under the
// same key is replaced, never duplicated. Fire times in the past dispatch
// immediately.
func (q *Queue) Schedule(key string, fireAt time.Time, payload any) {
	if q == nil || key == "" {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	if existing, ok := q.pending[key]; ok {
		existing.timer.Stop()
		delete(q.pending, key)
	}

	delay := fireAt.Sub(q.now())
	if delay < 0 {
		delay = 0
	}

	trigger := &pendingTrigger{payload: payload, fireAt: fireAt}
	trigger.timer = time.AfterFunc(delay, func() { q.fire(key, trigger) })
	q.pending[key] = trigger
}

// Cancel removes a pending trigger by key. Cancelling a key that never
// existed or already fired is a no-op.
func (q *Queue) Cancel(key string) {
	if q == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if trigger, ok := q.pending[key]; ok {
		trigger.timer.Stop()
		delete(q.pending, key)
	}
}

// Pending reports whether a trigger is currently queued under key.
func (q *Queue) Pending(key string) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// Len returns the number of queued triggers.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops all pending timers and waits for in-flight handlers.
func (q *Queue) Close() {
	if q == nil {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for key, trigger := range q.pending {
		trigger.timer.Stop()
		delete(q.pending, key)
	}
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

// fire dispatches the trigger its timer belongs to. A stopped timer can
// still run its callback if it was already firing when Stop was called, so
// the trigger under the key must be the exact one that armed this timer; a
// replacement scheduled under the same key keeps its own fire time.
func (q *Queue) fire(key string, trigger *pendingTrigger) {
	q.mu.Lock()
	current, ok := q.pending[key]
	if !ok || current != trigger || q.closed {
		q.mu.Unlock()
		return
	}
	delete(q.pending, key)
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		q.dispatch(key, trigger.payload)
	}()
}

func (q *Queue) dispatch(key string, payload any) {
	if q.handler == nil {
		return
	}

	var err error
	for attempt := 1; attempt <= q.maxRetries; attempt++ {
		if err = q.handler(q.ctx, key, payload); err == nil {
			return
		}

		q.logger.Warn("delayed trigger delivery failed",
			"key", key, "attempt", attempt, "error", err)

		if attempt == q.maxRetries {
			break
		}
		select {
		case <-q.ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}

	q.logger.Error("delayed trigger exhausted retries", "key", key, "error", err)
}
