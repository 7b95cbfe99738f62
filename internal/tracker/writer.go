package tracker

import (
	"context"
	"log/slog"
	"sync"
)

// credit is one pending additive write.
type credit struct {
	Domain    string
	Day       string
	Seconds   float64
	SessionID string
}

// writeQueue commits credits in the background. Callers never wait on a
// write and failed writes are logged and dropped, never retried. A single
// worker applies credits in the order they were issued, so the whole-store
// read-modify-write in the accruer never overlaps with itself.
type writeQueue struct {
	q       *queue[credit]
	accrual Accruer
	logger  *slog.Logger

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int

	done chan struct{}
	once sync.Once
}

func newWriteQueue(accrual Accruer, logger *slog.Logger) *writeQueue {
	w := &writeQueue{
		q:       newQueue[credit](),
		accrual: accrual,
		logger:  logger,
		done:    make(chan struct{}),
	}
	w.idle = sync.NewCond(&w.mu)
	return w
}

// Submit queues c without blocking.
func (w *writeQueue) Submit(c credit) {
	w.mu.Lock()
	w.inflight++
	w.mu.Unlock()

	if !w.q.Enqueue(c) {
		w.release()
		w.logger.Error("credit dropped: writer stopped",
			"domain", c.Domain, "day", c.Day, "seconds", c.Seconds)
	}
}

// start launches the worker. It is safe to call more than once.
func (w *writeQueue) start() {
	w.once.Do(func() { go w.run() })
}

func (w *writeQueue) run() {
	defer close(w.done)
	for {
		if c, ok := w.q.TryDequeue(); ok {
			w.apply(c)
			continue
		}
		if w.q.Drained() {
			return
		}
		<-w.q.Wait()
	}
}

func (w *writeQueue) apply(c credit) {
	defer w.release()
	if err := w.accrual.AddSeconds(context.Background(), c.Domain, c.Seconds, c.Day); err != nil {
		w.logger.Error("persist credit failed",
			"domain", c.Domain, "day", c.Day, "seconds", c.Seconds,
			"session_id", c.SessionID, "error", err)
		return
	}
	w.logger.Debug("credit persisted",
		"domain", c.Domain, "day", c.Day, "seconds", c.Seconds, "session_id", c.SessionID)
}

func (w *writeQueue) release() {
	w.mu.Lock()
	w.inflight--
	if w.inflight == 0 {
		w.idle.Broadcast()
	}
	w.mu.Unlock()
}

// Flush blocks until every submitted credit has been applied.
func (w *writeQueue) Flush() {
	w.mu.Lock()
	for w.inflight > 0 {
		w.idle.Wait()
	}
	w.mu.Unlock()
}

// stop closes the queue, lets the worker finish the backlog, and waits for
// it to exit.
func (w *writeQueue) stop() {
	w.q.Close()
	w.start()
	<-w.done
}
