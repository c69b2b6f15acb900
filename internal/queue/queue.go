// package queue implements a rate-limited request queue.
//
// A [Queue] executes at most one request at a time and starts the next one no sooner than the
// configured interval after the previous one completed. Requests carry a [Priority]; within a tier they run in FIFO order and
// across tiers strictly high before medium before low. A queue whose callers only use one
// priority is a plain FIFO queue.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/labeltree/internal/metrics"
	"github.com/desertthunder/labeltree/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultInterval matches the MusicBrainz limit of one request per second.
const DefaultInterval = time.Second

// Priority orders queued requests. Lower values run first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Func is the unit of work executed by the queue.
type Func func(ctx context.Context) (any, error)

type result struct {
	value any
	err   error
}

type request struct {
	id       string
	ctx      context.Context
	fn       Func
	priority Priority
	enqueued time.Time
	done     chan result
}

// Options configures a [Queue].
type Options struct {
	Name     string // label used in logs and metrics
	Interval time.Duration
	Logger   *log.Logger
	Metrics  *metrics.Metrics
}

// Queue is a single-consumer, rate-limited priority queue.
type Queue struct {
	name    string
	every   rate.Limit
	limiter *rate.Limiter // touched only by the drain loop, or under mu once it has stopped
	logger  *log.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	pending  []*request
	draining bool
}

// New creates a queue. The drain loop is started lazily by the first [Queue.Enqueue].
func New(opts Options) *Queue {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	every := rate.Every(opts.Interval)
	return &Queue{
		name:    opts.Name,
		every:   every,
		limiter: rate.NewLimiter(every, 1),
		logger:  shared.WithLogger(opts.Logger, "queue", opts.Name),
		metrics: opts.Metrics,
	}
}

// Enqueue schedules fn and blocks until it has run, the queue is cleared, or ctx is done.
//
// The returned value and error are fn's own; a failing request never stops the queue.
func (q *Queue) Enqueue(ctx context.Context, fn Func, priority Priority) (any, error) {
	req := &request{
		id:       shared.GenerateID(),
		ctx:      ctx,
		fn:       fn,
		priority: priority,
		enqueued: time.Now(),
		done:     make(chan result, 1),
	}

	q.mu.Lock()
	q.insert(req)
	start := !q.draining
	q.draining = true
	q.observeDepth()
	q.mu.Unlock()

	q.logger.Debug("request queued", "id", req.id, "priority", priority)

	if start {
		go q.drain()
	}

	select {
	case res := <-req.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do runs fn through q and converts the result back to T.
func Do[T any](ctx context.Context, q *Queue, priority Priority, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, priority)
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, nil
	}
	return t, nil
}

// Clear rejects every request that has not started yet. The in-flight request is unaffected.
func (q *Queue) Clear() int {
	q.mu.Lock()
	cleared := q.pending
	q.pending = nil
	q.observeDepth()
	q.mu.Unlock()

	for _, req := range cleared {
		req.done <- result{err: &shared.APIError{Kind: shared.KindCancelled, Message: "Request cancelled"}}
		q.observeOutcome("cancelled")
	}

	if len(cleared) > 0 {
		q.logger.Info("queue cleared", "rejected", len(cleared))
	}
	return len(cleared)
}

// Len reports the number of requests waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// insert places req after the last pending request of equal or higher priority.
// Callers must hold q.mu.
func (q *Queue) insert(req *request) {
	i := len(q.pending)
	for j, p := range q.pending {
		if p.priority > req.priority {
			i = j
			break
		}
	}

	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = req
}

// drain is the only consumer. It waits for a limiter token before taking the head of the
// queue so that a request enqueued at higher priority during the wait still runs first.
func (q *Queue) drain() {
	for {
		if err := q.limiter.Wait(context.Background()); err != nil {
			q.logger.Error("limiter wait failed", "error", err)
		}

		req := q.next()
		if req == nil {
			return
		}

		if q.metrics != nil {
			q.metrics.QueueWait.WithLabelValues(q.name).Observe(time.Since(req.enqueued).Seconds())
		}

		value, err := req.fn(req.ctx)
		q.settle(time.Now())
		if err != nil {
			q.logger.Debug("request failed", "id", req.id, "error", err)
			q.observeOutcome("error")
		} else {
			q.observeOutcome("ok")
		}
		req.done <- result{value: value, err: err}
	}
}

// next pops the first request whose caller is still waiting, rejecting abandoned ones on the
// way. All of them share the token drain already holds. When nothing is left it stops the
// loop and refills the limiter: the interval since the last completion has already passed.
func (q *Queue) next() *request {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) > 0 {
		req := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.observeDepth()

		if err := req.ctx.Err(); err != nil {
			req.done <- result{err: err}
			q.observeOutcome("cancelled")
			continue
		}
		return req
	}

	q.draining = false
	q.limiter = rate.NewLimiter(q.every, 1)
	return nil
}

// settle spends the limiter's only token at t, so the next request starts a full interval
// after the one that just completed.
func (q *Queue) settle(t time.Time) {
	q.limiter = rate.NewLimiter(q.every, 1)
	q.limiter.ReserveN(t, 1)
}

func (q *Queue) observeDepth() {
	if q.metrics != nil {
		q.metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.pending)))
	}
}

func (q *Queue) observeOutcome(outcome string) {
	if q.metrics != nil {
		q.metrics.QueueExecuted.WithLabelValues(q.name, outcome).Inc()
	}
}
