package conversation

import (
	"context"
	"log/slog"
	"sync"
)

// SerialQueue runs tasks one at a time per lane while different lanes proceed
// concurrently. The pipeline uses one lane per tenant so that read-then-write
// sequences like conflict checks never interleave within a clinic.
type SerialQueue struct {
	buffer int
	logger *slog.Logger
	done   chan struct{}

	mu     sync.Mutex
	lanes  map[string]chan func()
	closed bool
	wg     sync.WaitGroup
}

// NewSerialQueue creates a queue whose lanes buffer up to buffer pending
// tasks each.
func NewSerialQueue(buffer int, logger *slog.Logger) *SerialQueue {
	if buffer <= 0 {
		buffer = 128
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SerialQueue{
		buffer: buffer,
		logger: logger,
		done:   make(chan struct{}),
		lanes:  make(map[string]chan func()),
	}
}

// Submit queues task on the lane, blocking if the lane buffer is full until
// ctx is done or the queue is closed. Tasks on the same lane run in
// submission order.
func (q *SerialQueue) Submit(ctx context.Context, lane string, task func()) error {
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return context.Canceled
	}
	ch, ok := q.lanes[lane]
	if !ok {
		ch = make(chan func(), q.buffer)
		q.lanes[lane] = ch
		q.wg.Add(1)
		go q.run(lane, ch)
	}
	q.mu.Unlock()

	select {
	case ch <- task:
		return nil
	case <-q.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *SerialQueue) run(lane string, ch chan func()) {
	defer q.wg.Done()
	for {
		select {
		case task := <-ch:
			q.exec(lane, task)
		case <-q.done:
			// Drain what was accepted before shutdown, then exit.
			for {
				select {
				case task := <-ch:
					q.exec(lane, task)
				default:
					return
				}
			}
		}
	}
}

func (q *SerialQueue) exec(lane string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queued task panicked", "lane", lane, "panic", r)
		}
	}()
	task()
}

// Close stops accepting work, unblocks any Submit waiting on a full lane, and
// waits for queued tasks to drain. Lane channels are never closed: Submit may
// still be sending on one when Close runs.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()
	q.wg.Wait()
}
