package session

import (
	"sync"
)

// defaultQueueCapacity bounds the pending-chunk backlog. At ~85ms per chunk
// this is well over a minute of audio; a backlog that deep means the
// rendering side stalled and the oldest audio is stale anyway.
const defaultQueueCapacity = 256

// Chunk is one dispatchable unit of synthesized speech: int16 samples at the
// render rate. A chunk is owned by the queue until dequeued; ownership then
// transfers to the dispatcher, never shared.
type Chunk []int16

// chunkQueue is the ordered buffer between the inbound audio-delta producer
// and the dispatcher. Strict FIFO: chunks leave in exactly the order they
// arrived. Only those two call sites may touch it.
type chunkQueue struct {
	mu sync.Mutex

	chunks   []Chunk
	capacity int

	droppedTotal int64
}

func newChunkQueue(capacity int) *chunkQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &chunkQueue{capacity: capacity}
}

// Enqueue appends a chunk at the tail. When the queue is full the oldest
// chunk is dropped to make room; the reported flag lets the caller record the
// overflow. Dropping oldest keeps playback as close to live as possible.
func (q *chunkQueue) Enqueue(chunk Chunk) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) >= q.capacity {
		q.chunks = q.chunks[1:]
		q.droppedTotal++
		dropped = true
	}

	q.chunks = append(q.chunks, chunk)
	return dropped
}

// Dequeue removes and returns the head chunk. It never blocks; the second
// return value is false when the queue is empty.
func (q *chunkQueue) Dequeue() (Chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		return nil, false
	}

	chunk := q.chunks[0]
	q.chunks = q.chunks[1:]
	return chunk, true
}

func (q *chunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Flush discards every pending chunk and reports how many were dropped.
// Used on user barge-in: audio queued for a cancelled response must not reach
// the rendering endpoint.
func (q *chunkQueue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	flushed := len(q.chunks)
	q.chunks = nil
	return flushed
}

func (q *chunkQueue) DroppedTotal() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.droppedTotal
}
