package queue

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/labeltree/internal/metrics"
	"github.com/desertthunder/labeltree/internal/shared"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestQueue(interval time.Duration, m *metrics.Metrics) *Queue {
	return New(Options{Name: "test", Interval: interval, Logger: shared.NewLogger(io.Discard), Metrics: m})
}

func waitLen(t *testing.T, q *Queue, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for q.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for queue length %d, got %d", n, q.Len())
		}
		time.Sleep(time.Millisecond)
	}
}

// blockQueue occupies the drain loop until the returned release func is called.
func blockQueue(t *testing.T, q *Queue) (release func(), done <-chan error) {
	t.Helper()
	started := make(chan struct{})
	unblock := make(chan struct{})
	errc := make(chan error, 1)

	go func() {
		_, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-unblock
			return "blocker", nil
		}, PriorityLow)
		errc <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking request never started")
	}
	return func() { close(unblock) }, errc
}

func TestQueue(t *testing.T) {
	t.Run("Spaces Consecutive Requests", func(t *testing.T) {
		interval := 25 * time.Millisecond
		q := newTestQueue(interval, nil)

		var mu sync.Mutex
		var starts []time.Time

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
					mu.Lock()
					starts = append(starts, time.Now())
					mu.Unlock()
					return nil, nil
				}, PriorityMedium)
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			}()
		}
		wg.Wait()

		if len(starts) != 5 {
			t.Fatalf("expected 5 executions, got %d", len(starts))
		}
		sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

		// small tolerance for scheduling between token acquisition and the first line of fn
		for i := 1; i < len(starts); i++ {
			if gap := starts[i].Sub(starts[i-1]); gap < interval-2*time.Millisecond {
				t.Errorf("gap %d was %v, expected at least %v", i, gap, interval)
			}
		}
	})

	t.Run("Spaces From Completion", func(t *testing.T) {
		interval := 60 * time.Millisecond
		q := newTestQueue(interval, nil)

		var finished time.Time
		slowDone := make(chan error, 1)
		started := make(chan struct{})
		go func() {
			_, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
				close(started)
				time.Sleep(2 * interval)
				finished = time.Now()
				return nil, nil
			}, PriorityMedium)
			slowDone <- err
		}()
		<-started

		var began time.Time
		if _, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
			began = time.Now()
			return nil, nil
		}, PriorityMedium); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := <-slowDone; err != nil {
			t.Fatalf("slow request failed: %v", err)
		}

		if gap := began.Sub(finished); gap < interval-2*time.Millisecond {
			t.Errorf("next request started %v after the slow one completed, expected at least %v", gap, interval)
		}
	})

	t.Run("Abandoned Requests Do Not Delay The Next", func(t *testing.T) {
		interval := 80 * time.Millisecond
		q := newTestQueue(interval, nil)
		release, blockerDone := blockQueue(t, q)

		ctx, cancel := context.WithCancel(context.Background())
		abandoned := make(chan error, 3)
		for i := 0; i < 3; i++ {
			go func() {
				_, err := q.Enqueue(ctx, func(ctx context.Context) (any, error) { return nil, nil }, PriorityHigh)
				abandoned <- err
			}()
			waitLen(t, q, i+1)
		}
		cancel()
		for i := 0; i < 3; i++ {
			<-abandoned
		}

		live := make(chan time.Time, 1)
		go func() {
			q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
				live <- time.Now()
				return nil, nil
			}, PriorityMedium)
		}()
		waitLen(t, q, 4)

		released := time.Now()
		release()
		if err := <-blockerDone; err != nil {
			t.Fatalf("blocker failed: %v", err)
		}

		select {
		case began := <-live:
			if gap := began.Sub(released); gap >= 2*interval {
				t.Errorf("live request waited %v behind abandoned ones, expected under %v", gap, 2*interval)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("live request never ran")
		}
	})

	t.Run("Idle Queue Starts Immediately", func(t *testing.T) {
		interval := 80 * time.Millisecond
		q := newTestQueue(interval, nil)

		if _, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) { return nil, nil }, PriorityMedium); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		time.Sleep(2 * interval)

		enqueued := time.Now()
		var began time.Time
		q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
			began = time.Now()
			return nil, nil
		}, PriorityMedium)
		if gap := began.Sub(enqueued); gap >= interval/2 {
			t.Errorf("expected an idle queue to start at once, waited %v", gap)
		}
	})

	t.Run("One Request In Flight", func(t *testing.T) {
		q := newTestQueue(time.Millisecond, nil)

		var inFlight, maxInFlight int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
					n := atomic.AddInt32(&inFlight, 1)
					for {
						m := atomic.LoadInt32(&maxInFlight)
						if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
							break
						}
					}
					time.Sleep(200 * time.Microsecond)
					atomic.AddInt32(&inFlight, -1)
					return nil, nil
				}, PriorityMedium)
			}()
		}
		wg.Wait()

		if maxInFlight != 1 {
			t.Errorf("expected at most one request in flight, saw %d", maxInFlight)
		}
	})

	t.Run("Returns Each Caller Its Own Result", func(t *testing.T) {
		q := newTestQueue(time.Millisecond, nil)
		boom := errors.New("boom")

		_, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
			return nil, boom
		}, PriorityMedium)
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}

		v, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
			return 42, nil
		}, PriorityMedium)
		if err != nil {
			t.Fatalf("expected queue to keep running after a failure, got %v", err)
		}
		if v.(int) != 42 {
			t.Errorf("expected 42, got %v", v)
		}
	})

	t.Run("Orders By Priority Then FIFO", func(t *testing.T) {
		q := newTestQueue(time.Millisecond, nil)
		release, blockerDone := blockQueue(t, q)

		var mu sync.Mutex
		var order []string
		record := func(name string) Func {
			return func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil, nil
			}
		}

		var wg sync.WaitGroup
		submit := func(name string, p Priority, n int) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.Enqueue(context.Background(), record(name), p)
			}()
			waitLen(t, q, n)
		}

		submit("low-1", PriorityLow, 1)
		submit("medium-1", PriorityMedium, 2)
		submit("high-1", PriorityHigh, 3)
		submit("medium-2", PriorityMedium, 4)
		submit("high-2", PriorityHigh, 5)

		release()
		wg.Wait()
		if err := <-blockerDone; err != nil {
			t.Fatalf("blocker failed: %v", err)
		}

		want := []string{"high-1", "high-2", "medium-1", "medium-2", "low-1"}
		if len(order) != len(want) {
			t.Fatalf("expected %d executions, got %v", len(want), order)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("position %d: expected %s, got %s (order %v)", i, want[i], order[i], order)
			}
		}
	})

	t.Run("Clear Rejects Pending Only", func(t *testing.T) {
		m := metrics.New()
		q := newTestQueue(time.Millisecond, m)
		release, blockerDone := blockQueue(t, q)

		var ran int32
		errs := make(chan error, 3)
		for i := 0; i < 3; i++ {
			go func() {
				_, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
					atomic.AddInt32(&ran, 1)
					return nil, nil
				}, PriorityMedium)
				errs <- err
			}()
			waitLen(t, q, i+1)
		}

		if n := q.Clear(); n != 3 {
			t.Errorf("expected 3 requests cleared, got %d", n)
		}

		for i := 0; i < 3; i++ {
			err := <-errs
			if !errors.Is(err, shared.ErrRequestCancelled) {
				t.Errorf("expected ErrRequestCancelled, got %v", err)
			}
		}

		release()
		if err := <-blockerDone; err != nil {
			t.Errorf("expected in-flight request to complete, got %v", err)
		}
		if atomic.LoadInt32(&ran) != 0 {
			t.Errorf("expected cleared requests never to run, %d ran", ran)
		}
		if got := testutil.ToFloat64(m.QueueExecuted.WithLabelValues("test", "cancelled")); got != 3 {
			t.Errorf("expected 3 cancelled outcomes, got %v", got)
		}
		if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("test")); got != 0 {
			t.Errorf("expected depth gauge 0, got %v", got)
		}
	})

	t.Run("Caller Context Cancelled While Waiting", func(t *testing.T) {
		q := newTestQueue(time.Millisecond, nil)
		release, blockerDone := blockQueue(t, q)

		ctx, cancel := context.WithCancel(context.Background())
		var ran int32
		errc := make(chan error, 1)
		go func() {
			_, err := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
				atomic.AddInt32(&ran, 1)
				return nil, nil
			}, PriorityMedium)
			errc <- err
		}()
		waitLen(t, q, 1)

		cancel()
		if err := <-errc; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}

		release()
		<-blockerDone
		waitLen(t, q, 0)

		// the next request proves the skipped entry did not wedge the loop
		if _, err := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) { return nil, nil }, PriorityMedium); err != nil {
			t.Errorf("expected queue to keep draining, got %v", err)
		}
		if atomic.LoadInt32(&ran) != 0 {
			t.Error("expected cancelled request to be skipped")
		}
	})

	t.Run("Do Converts Types", func(t *testing.T) {
		q := newTestQueue(time.Millisecond, nil)

		got, err := Do(context.Background(), q, PriorityHigh, func(ctx context.Context) ([]string, error) {
			return []string{"a", "b"}, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 2 || got[1] != "b" {
			t.Errorf("unexpected result %v", got)
		}

		ptr, err := Do(context.Background(), q, PriorityHigh, func(ctx context.Context) (*int, error) {
			return nil, nil
		})
		if err != nil || ptr != nil {
			t.Errorf("expected nil pointer and no error, got %v, %v", ptr, err)
		}
	})

	t.Run("Priority String", func(t *testing.T) {
		if PriorityHigh.String() != "high" || PriorityMedium.String() != "medium" || PriorityLow.String() != "low" {
			t.Error("unexpected priority names")
		}
	})
}
