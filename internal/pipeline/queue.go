package pipeline

import (
	"sync"

	"voxelterrain/internal/world"
)

// Queue is a FIFO of chunk coordinates that holds each coordinate at most
// once. Stages peek at the head and only pop once the head can start, so a
// blocked chunk keeps its place.
type Queue struct {
	pending []world.ChunkCoord
	members map[world.ChunkCoord]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		members: make(map[world.ChunkCoord]struct{}),
	}
}

// Push appends coord unless it is already queued.
func (q *Queue) Push(coord world.ChunkCoord) bool {
	if _, ok := q.members[coord]; ok {
		return false
	}
	q.members[coord] = struct{}{}
	q.pending = append(q.pending, coord)
	return true
}

func (q *Queue) Peek() (world.ChunkCoord, bool) {
	if len(q.pending) == 0 {
		return world.ChunkCoord{}, false
	}
	return q.pending[0], true
}

func (q *Queue) Pop() (world.ChunkCoord, bool) {
	coord, ok := q.Peek()
	if !ok {
		return coord, false
	}
	q.pending = q.pending[1:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	delete(q.members, coord)
	return coord, true
}

// Clear drops every queued coordinate and releases the backing storage.
func (q *Queue) Clear() {
	q.pending = nil
	clear(q.members)
}

func (q *Queue) Contains(coord world.ChunkCoord) bool {
	_, ok := q.members[coord]
	return ok
}

func (q *Queue) Len() int {
	return len(q.pending)
}

// editQueue is the FIFO of resolved edits waiting for their cascade.
type editQueue struct {
	mu      sync.Mutex
	pending []*PendingEdit
}

func (q *editQueue) Enqueue(edit *PendingEdit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, edit)
}

func (q *editQueue) Peek() *PendingEdit {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	return q.pending[0]
}

func (q *editQueue) Pop() *PendingEdit {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	edit := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	return edit
}

func (q *editQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
