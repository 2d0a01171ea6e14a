package render

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/mesh"
	"voxelterrain/internal/world"
)

// Recorder is a ChunkObject that keeps only geometry counts. It backs the
// headless driver and tests.
type Recorder struct {
	Coord world.ChunkCoord

	mu        sync.Mutex
	vertices  int
	triangles int
	colliders [mesh.LayerCount]int
	uploads   int
	active    bool
	destroyed bool
}

// RecorderSnapshot is a copy of a recorder's state.
type RecorderSnapshot struct {
	Coord     world.ChunkCoord
	Vertices  int
	Triangles int
	Colliders [mesh.LayerCount]int
	Uploads   int
	Active    bool
	Destroyed bool
}

func (r *Recorder) SetRenderer(vertices, normals []mgl32.Vec3, indices []uint32,
	weightsA, weightsB, materialIdsA, materialIdsB []mgl32.Vec4, lights []mgl32.Vec2) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustLive()
	if len(normals) != len(vertices) || len(lights) != len(vertices) ||
		len(weightsA) != len(vertices) || len(weightsB) != len(vertices) ||
		len(materialIdsA) != len(vertices) || len(materialIdsB) != len(vertices) {
		panic("render: vertex attribute lengths differ")
	}
	r.vertices = len(vertices)
	r.triangles = len(indices) / 3
	r.uploads++
}

func (r *Recorder) SetCollider(layer int, vertices []mgl32.Vec3, indices []uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustLive()
	r.colliders[layer] = len(indices) / 3
}

func (r *Recorder) Activate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustLive()
	r.active = true
}

func (r *Recorder) Deactivate() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
}

func (r *Recorder) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Recorder) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustLive()
	r.active = false
	r.destroyed = true
}

// Snapshot copies the recorded state.
func (r *Recorder) Snapshot() RecorderSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RecorderSnapshot{
		Coord:     r.Coord,
		Vertices:  r.vertices,
		Triangles: r.triangles,
		Colliders: r.colliders,
		Uploads:   r.uploads,
		Active:    r.active,
		Destroyed: r.destroyed,
	}
}

func (r *Recorder) mustLive() {
	if r.destroyed {
		panic("render: chunk object used after Destroy")
	}
}

// HeadlessFactory creates Recorders and remembers the latest one per chunk.
type HeadlessFactory struct {
	mu      sync.Mutex
	objects map[world.ChunkCoord]*Recorder
	created int
}

func NewHeadlessFactory() *HeadlessFactory {
	return &HeadlessFactory{objects: make(map[world.ChunkCoord]*Recorder)}
}

func (f *HeadlessFactory) Create(coord world.ChunkCoord) ChunkObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &Recorder{Coord: coord}
	f.objects[coord] = r
	f.created++
	return r
}

// Object returns the most recent recorder created for coord.
func (f *HeadlessFactory) Object(coord world.ChunkCoord) (*Recorder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.objects[coord]
	return r, ok
}

// Created returns how many objects the factory has made.
func (f *HeadlessFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}
