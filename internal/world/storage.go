package world

import "sync"

// Pool retains released chunk buffers so later terrain tasks can reuse them
// instead of allocating three 64 KiB arrays per chunk.
type Pool struct {
	mu   sync.Mutex
	free []*Chunk
	max  int

	allocated int
	reused    int
}

// NewPool returns a pool that keeps at most max idle chunks.
func NewPool(max int) *Pool {
	if max < 0 {
		max = 0
	}
	return &Pool{max: max, free: make([]*Chunk, 0, max)}
}

// Acquire returns a reset chunk for key, reusing an idle buffer when possible.
func (p *Pool) Acquire(key ChunkCoord) *Chunk {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.allocated++
		p.mu.Unlock()
		return NewChunk(key)
	}
	c := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.reused++
	p.mu.Unlock()

	c.Reset(key)
	return c
}

// Release hands a chunk back. The caller must not touch it afterwards.
func (p *Pool) Release(c *Chunk) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.max {
		return
	}
	p.free = append(p.free, c)
}

// Idle reports how many chunks are waiting for reuse.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Stats reports how many chunks were freshly allocated and how many were reused.
func (p *Pool) Stats() (allocated, reused int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated, p.reused
}
