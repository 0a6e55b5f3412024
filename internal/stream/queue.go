package stream

import "sync"

// chunkQueue is a list of chunks shared between the Tick goroutine and the
// loader. The lock is held only to append or splice, never during I/O.
type chunkQueue struct {
	mu    sync.Mutex
	items []*Chunk
}

func (q *chunkQueue) push(c *Chunk) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

func (q *chunkQueue) pushAll(cs []*Chunk) {
	if len(cs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, cs...)
	q.mu.Unlock()
}

// splice moves every queued chunk onto dst and empties the queue.
func (q *chunkQueue) splice(dst []*Chunk) []*Chunk {
	q.mu.Lock()
	dst = append(dst, q.items...)
	clear(q.items)
	q.items = q.items[:0]
	q.mu.Unlock()
	return dst
}

func (q *chunkQueue) contains(c *Chunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it == c {
			return true
		}
	}
	return false
}

func (q *chunkQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
