package queue

import (
	"sync"

	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// MemQueue is a bounded in-memory queue of encoded frames that preserves FIFO
// ordering. Producers never block: Enqueue reports false when the queue is at
// capacity and leaves the decision to the caller's policy.
type MemQueue struct {
	mu    sync.Mutex
	data  [][]byte
	cap   int
	ready chan struct{}
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data:  make([][]byte, 0, capacity),
		cap:   capacity,
		ready: make(chan struct{}, 1),
	}
}

func (q *MemQueue) Enqueue(frame []byte) bool {
	q.mu.Lock()
	if len(q.data) >= q.cap {
		q.mu.Unlock()
		return false
	}
	q.data = append(q.data, frame)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *MemQueue) DequeueBatch(max int) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([][]byte, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

func (q *MemQueue) Ready() <-chan struct{} { return q.ready }

var _ ports.MessageQueue = (*MemQueue)(nil)
