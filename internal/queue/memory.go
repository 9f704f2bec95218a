package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

// MemoryQueue is a buffered channel drained by worker goroutines. It is used
// when no broker is configured; messages are lost on restart.
type MemoryQueue struct {
	ch     chan models.Notification
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{ch: make(chan models.Notification, size)}
}

// Dispatch never blocks.
func (q *MemoryQueue) Dispatch(ctx context.Context, n models.Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts workers and blocks until ctx is done or the queue is closed and
// drained.
func (q *MemoryQueue) Run(ctx context.Context, workers int, h Handler) {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case n, ok := <-q.ch:
					if !ok {
						return
					}
					if err := h(ctx, n); err != nil {
						utils.Log().Error("notification dropped",
							zap.Int("worker", id),
							zap.String("reference", n.Reference),
							zap.Error(err),
						)
					}
				}
			}
		}(i)
	}
	wg.Wait()
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
