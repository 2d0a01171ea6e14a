// Package pipeline drives chunks through terrain, light and mesh stages around
// a moving viewer and runs world edits through relight and remesh.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"voxelterrain/internal/config"
	"voxelterrain/internal/logging"
	"voxelterrain/internal/mesh"
	"voxelterrain/internal/render"
	"voxelterrain/internal/terrain"
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

const (
	// lightMargin and keepMargin extend the interest radius: chunks are lit
	// one ring beyond it and kept in memory two rings beyond it, so every
	// chunk that must be meshed or lit has the neighbours it waits for.
	lightMargin = 1
	keepMargin  = 2
)

// Observer is told about every task right before it is submitted. It runs on
// the tick goroutine and may inspect the scheduler.
type Observer func(kind Kind, coord world.ChunkCoord)

// Viewer supplies the position the pipeline loads around.
type Viewer interface {
	Position() mgl32.Vec3
}

// ViewerFunc adapts a function to Viewer.
type ViewerFunc func() mgl32.Vec3

func (f ViewerFunc) Position() mgl32.Vec3 { return f() }

// Options configures a Scheduler. Config and Factory are required.
type Options struct {
	Config     *config.Config
	Factory    render.Factory
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Observer   Observer
}

// Scheduler owns every chunk, chunk object, queue and task buffer. It and its
// EditManager must only be used from the goroutine running Tick.
type Scheduler struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics
	factory  render.Factory
	observer Observer

	generator *terrain.Generator
	chunkPool *world.Pool
	pool      pond.Pool
	ctx       context.Context
	cancel    context.CancelFunc

	radius int
	center world.ChunkCoord
	seeded bool

	chunks  map[world.ChunkCoord]*world.Chunk
	objects map[world.ChunkCoord]render.ChunkObject

	terrainQueue *Queue
	lightQueue   *Queue
	meshQueue    *Queue

	slots       [kindCount]slot
	terrainJob  terrainJob
	sunlightJob *sunlightJob
	meshJob     *meshJob
	relightJob  *relightJob
	editMeshJob editMeshJob

	edits  *EditManager
	closed bool
}

func New(opts Options) (*Scheduler, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("pipeline: config is nil")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("pipeline: chunk object factory is nil")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cfg := opts.Config
	logger := logging.OrNop(opts.Logger).Named("pipeline")

	m, err := newMetrics(cfg.Metrics.Namespace, opts.Registerer)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:          cfg,
		logger:       logger,
		metrics:      m,
		factory:      opts.Factory,
		observer:     opts.Observer,
		generator:    terrain.NewGenerator(cfg.Terrain, cfg.World.Seed, logging.OrNop(opts.Logger).Named("terrain")),
		chunkPool:    world.NewPool(cfg.Pipeline.PoolChunks),
		pool:         pond.NewPool(cfg.Pipeline.Workers),
		ctx:          ctx,
		cancel:       cancel,
		radius:       cfg.World.ViewRadius,
		chunks:       make(map[world.ChunkCoord]*world.Chunk),
		objects:      make(map[world.ChunkCoord]render.ChunkObject),
		terrainQueue: NewQueue(),
		lightQueue:   NewQueue(),
		meshQueue:    NewQueue(),
		sunlightJob:  newSunlightJob(),
		meshJob:      newMeshJob(),
		relightJob:   newRelightJob(),
	}
	for k := range s.slots {
		s.slots[k].kind = Kind(k)
	}
	s.edits = newEditManager(s)
	return s, nil
}

// Edits returns the world edit manager bound to this scheduler.
func (s *Scheduler) Edits() *EditManager {
	return s.edits
}

// Generator exposes the terrain generator, mostly for height queries.
func (s *Scheduler) Generator() *terrain.Generator {
	return s.generator
}

// Chunk returns the loaded chunk at coord, or nil.
func (s *Scheduler) Chunk(coord world.ChunkCoord) *world.Chunk {
	return s.chunks[coord]
}

// Object returns the chunk object at coord, or nil.
func (s *Scheduler) Object(coord world.ChunkCoord) render.ChunkObject {
	return s.objects[coord]
}

// Center returns the viewer chunk the queues were last built around.
func (s *Scheduler) Center() world.ChunkCoord {
	return s.center
}

// Run ticks the pipeline at the configured rate until ctx ends.
func (s *Scheduler) Run(ctx context.Context, viewer Viewer) error {
	ticker := time.NewTicker(s.cfg.Pipeline.TickRate.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(viewer.Position()); err != nil {
				return err
			}
		}
	}
}

// Tick applies finished tasks, follows the viewer and starts whatever work
// is eligible.
func (s *Scheduler) Tick(viewer mgl32.Vec3) error {
	if s.closed {
		return ErrClosed
	}

	if s.complete(KindTerrain) {
		s.applyTerrain()
	}
	if s.complete(KindSunlight) {
		s.applySunlight()
	}
	if s.complete(KindMesh) {
		s.applyMesh()
	}
	if s.complete(KindRelight) {
		s.edits.applyRelight()
	}
	if s.complete(KindEditMesh) {
		s.edits.applyRemesh()
	}

	if center := world.ChunkAt(viewer); !s.seeded || center != s.center {
		s.center = center
		s.seeded = true
		s.unload()
		s.rebuildQueues()
	}

	s.startTerrain()
	s.startSunlight()
	s.startMesh()
	s.edits.drain()

	s.observe()
	return nil
}

// submit starts fn in the slot for kind. Starting a kind that is already in
// flight is a scheduling bug.
func (s *Scheduler) submit(kind Kind, coord world.ChunkCoord, fn func()) {
	sl := &s.slots[kind]
	if sl.busy() {
		panic(fmt.Sprintf("pipeline: %s task for %v submitted while %v is in flight", kind, coord, sl.coord))
	}
	if s.observer != nil {
		s.observer(kind, coord)
	}
	sl.coord = coord
	sl.start = time.Now()
	sl.task = s.pool.Submit(fn)
	s.metrics.started.WithLabelValues(kind.String()).Inc()
}

// complete reports whether the slot's task has finished and, if so, frees
// the slot. A task that panicked takes the process down with it.
func (s *Scheduler) complete(kind Kind) bool {
	sl := &s.slots[kind]
	if !sl.finished() {
		return false
	}
	if err := sl.task.Wait(); err != nil {
		panic(fmt.Errorf("pipeline: %s task for %v failed: %w", kind, sl.coord, err))
	}
	sl.task = nil
	s.metrics.completed.WithLabelValues(kind.String()).Inc()
	s.metrics.duration.WithLabelValues(kind.String()).Observe(time.Since(sl.start).Seconds())
	return true
}

func (s *Scheduler) lookup(coord world.ChunkCoord) *world.Chunk {
	return s.chunks[coord]
}

// mustChunk returns a chunk that the caller knows is loaded.
func (s *Scheduler) mustChunk(coord world.ChunkCoord) *world.Chunk {
	c := s.chunks[coord]
	if c == nil {
		panic(fmt.Sprintf("pipeline: chunk %v expected to be loaded", coord))
	}
	return c
}

// fresh reports whether the neighbourhood of coord is still loaded with the
// revisions a task snapshotted.
func (s *Scheduler) fresh(coord world.ChunkCoord, revisions [9]uint64) bool {
	n, ok := volume.Gather(coord, s.lookup)
	return ok && n.Revisions() == revisions
}

func allLit(n *volume.Neighborhood) bool {
	for _, c := range n {
		if c == nil || !c.Has(world.FlagLights) {
			return false
		}
	}
	return true
}

func (s *Scheduler) startTerrain() {
	if s.slots[KindTerrain].busy() {
		return
	}
	for {
		coord, ok := s.terrainQueue.Pop()
		if !ok {
			return
		}
		if s.chunks[coord] != nil || coord.Distance(s.center) > s.radius+keepMargin {
			continue
		}
		job := &s.terrainJob
		job.chunk = s.chunkPool.Acquire(coord)
		job.err = nil
		ctx := s.ctx
		s.submit(KindTerrain, coord, func() {
			job.err = s.generator.Generate(ctx, job.chunk)
		})
		return
	}
}

func (s *Scheduler) applyTerrain() {
	job := &s.terrainJob
	chunk := job.chunk
	job.chunk = nil
	coord := chunk.Key

	if job.err != nil {
		s.chunkPool.Release(chunk)
		if !errors.Is(job.err, context.Canceled) {
			s.logger.Warn("terrain generation failed", zap.Int("chunkX", coord.X), zap.Int("chunkZ", coord.Z), zap.Error(job.err))
			s.terrainQueue.Push(coord)
		}
		return
	}
	if s.chunks[coord] != nil || coord.Distance(s.center) > s.radius+keepMargin {
		s.logger.Debug("discarding terrain outside interest", zap.Int("chunkX", coord.X), zap.Int("chunkZ", coord.Z))
		s.chunkPool.Release(chunk)
		return
	}
	s.chunks[coord] = chunk
	if coord.Distance(s.center) <= s.radius+lightMargin {
		s.lightQueue.Push(coord)
	}
}

func (s *Scheduler) startSunlight() {
	if s.slots[KindSunlight].busy() {
		return
	}
	for {
		coord, ok := s.lightQueue.Peek()
		if !ok {
			return
		}
		chunk := s.chunks[coord]
		if chunk == nil || chunk.Has(world.FlagLights) || coord.Distance(s.center) > s.radius+lightMargin {
			s.lightQueue.Pop()
			continue
		}
		n, complete := volume.Gather(coord, s.lookup)
		if !complete {
			return
		}
		s.lightQueue.Pop()

		job := s.sunlightJob
		job.volume.Load(&n, false)
		job.revisions = n.Revisions()
		s.submit(KindSunlight, coord, job.run)
		return
	}
}

func (s *Scheduler) applySunlight() {
	coord := s.slots[KindSunlight].coord
	job := s.sunlightJob
	chunk := s.chunks[coord]
	if chunk == nil {
		return
	}
	if !s.fresh(coord, job.revisions) {
		s.logger.Debug("discarding stale light", zap.Int("chunkX", coord.X), zap.Int("chunkZ", coord.Z))
		s.lightQueue.Push(coord)
		return
	}
	chunk.CopyLight(job.light)
	s.logger.Debug("chunk lit", zap.Int("chunkX", coord.X), zap.Int("chunkZ", coord.Z))
	if coord.Distance(s.center) <= s.radius {
		s.meshQueue.Push(coord)
	}
}

func (s *Scheduler) startMesh() {
	if s.slots[KindMesh].busy() {
		return
	}
	for {
		coord, ok := s.meshQueue.Peek()
		if !ok {
			return
		}
		chunk := s.chunks[coord]
		if chunk == nil || !chunk.Has(world.FlagLights) || chunk.Has(world.FlagMeshes) || coord.Distance(s.center) > s.radius {
			s.meshQueue.Pop()
			continue
		}
		n, complete := volume.Gather(coord, s.lookup)
		if !complete || !allLit(&n) {
			return
		}
		s.meshQueue.Pop()

		job := s.meshJob
		job.volume.Load(&n)
		job.revisions = n.Revisions()
		s.submit(KindMesh, coord, job.run)
		return
	}
}

func (s *Scheduler) applyMesh() {
	coord := s.slots[KindMesh].coord
	job := s.meshJob
	chunk := s.chunks[coord]
	if chunk == nil {
		return
	}
	if !s.fresh(coord, job.revisions) {
		s.logger.Debug("discarding stale mesh", zap.Int("chunkX", coord.X), zap.Int("chunkZ", coord.Z))
		s.meshQueue.Push(coord)
		return
	}
	s.upload(coord, chunk, &job.data)
}

// upload hands a finished mesh to the chunk's object, creating it on first
// use.
func (s *Scheduler) upload(coord world.ChunkCoord, chunk *world.Chunk, data *mesh.Data) {
	obj := s.objects[coord]
	if obj == nil {
		obj = s.factory.Create(coord)
		s.objects[coord] = obj
	}
	render.Apply(obj, data)
	chunk.Set(world.FlagMeshes | world.FlagColliders)
	if coord.Distance(s.center) <= s.radius {
		obj.Activate()
	} else {
		obj.Deactivate()
	}
	s.logger.Debug("chunk meshed",
		zap.Int("chunkX", coord.X),
		zap.Int("chunkZ", coord.Z),
		zap.Int("vertices", len(data.Vertices)),
		zap.Int("triangles", data.Triangles()))
}

// requeueMesh drops the chunk's mesh flags and sends it back to the mesh
// stage when it is inside the interest radius.
func (s *Scheduler) requeueMesh(coord world.ChunkCoord, chunk *world.Chunk) {
	chunk.Clear(world.FlagMeshes | world.FlagColliders)
	if coord.Distance(s.center) <= s.radius {
		s.meshQueue.Push(coord)
	}
}

// unload destroys chunks that fell beyond the keep range and hides or shows
// objects around the interest radius.
func (s *Scheduler) unload() {
	for coord, chunk := range s.chunks {
		d := coord.Distance(s.center)
		obj := s.objects[coord]
		switch {
		case d > s.radius+keepMargin:
			if obj != nil {
				obj.Destroy()
				delete(s.objects, coord)
			}
			delete(s.chunks, coord)
			s.chunkPool.Release(chunk)
			s.edits.forget(coord)
		case d > s.radius:
			if obj != nil && obj.IsActive() {
				obj.Deactivate()
			}
		default:
			if obj != nil && chunk.Has(world.FlagMeshes) && !obj.IsActive() {
				obj.Activate()
			}
		}
	}
}

// rebuildQueues refills every stage queue from a spiral around the current
// centre. Tasks in flight are left alone; their results are checked when
// they land.
func (s *Scheduler) rebuildQueues() {
	s.terrainQueue.Clear()
	s.lightQueue.Clear()
	s.meshQueue.Clear()

	for _, coord := range Spiral(s.center, s.radius+keepMargin) {
		chunk := s.chunks[coord]
		d := coord.Distance(s.center)
		switch {
		case chunk == nil:
			s.terrainQueue.Push(coord)
		case !chunk.Has(world.FlagLights):
			if d <= s.radius+lightMargin {
				s.lightQueue.Push(coord)
			}
		case !chunk.Has(world.FlagMeshes):
			if d <= s.radius {
				s.meshQueue.Push(coord)
			}
		}
	}
	s.logger.Debug("stage queues rebuilt",
		zap.Int("centerX", s.center.X),
		zap.Int("centerZ", s.center.Z),
		zap.Int("terrain", s.terrainQueue.Len()),
		zap.Int("light", s.lightQueue.Len()),
		zap.Int("mesh", s.meshQueue.Len()))
}

func (s *Scheduler) observe() {
	s.metrics.queueDepth.WithLabelValues("terrain").Set(float64(s.terrainQueue.Len()))
	s.metrics.queueDepth.WithLabelValues("light").Set(float64(s.lightQueue.Len()))
	s.metrics.queueDepth.WithLabelValues("mesh").Set(float64(s.meshQueue.Len()))
	s.metrics.chunks.Set(float64(len(s.chunks)))
	active := 0
	for _, obj := range s.objects {
		if obj.IsActive() {
			active++
		}
	}
	s.metrics.active.Set(float64(active))
}

// Stats is a snapshot of the scheduler's state.
type Stats struct {
	Chunks        int
	Objects       int
	ActiveObjects int
	TerrainQueue  int
	LightQueue    int
	MeshQueue     int
	PendingEdits  int
	EditBlocked   bool
	InFlight      []Kind
	PoolIdle      int
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		Chunks:       len(s.chunks),
		Objects:      len(s.objects),
		TerrainQueue: s.terrainQueue.Len(),
		LightQueue:   s.lightQueue.Len(),
		MeshQueue:    s.meshQueue.Len(),
		PendingEdits: s.edits.queue.Len(),
		EditBlocked:  s.edits.Blocked(),
		PoolIdle:     s.chunkPool.Idle(),
	}
	for _, obj := range s.objects {
		if obj.IsActive() {
			st.ActiveObjects++
		}
	}
	for k := range s.slots {
		if s.slots[k].busy() {
			st.InFlight = append(st.InFlight, Kind(k))
		}
	}
	return st
}

// Shutdown waits for every task in flight, then destroys all chunk objects
// and returns chunk buffers to the pool. The scheduler is unusable after.
func (s *Scheduler) Shutdown() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.pool.StopAndWait()
	s.releaseBuffers()

	for coord, obj := range s.objects {
		obj.Destroy()
		delete(s.objects, coord)
	}
	for coord, chunk := range s.chunks {
		delete(s.chunks, coord)
		s.chunkPool.Release(chunk)
	}
	s.terrainQueue.Clear()
	s.lightQueue.Clear()
	s.meshQueue.Clear()

	allocated, reused := s.chunkPool.Stats()
	s.logger.Info("pipeline shut down",
		zap.Int("chunksAllocated", allocated),
		zap.Int("chunksReused", reused))
}

// releaseBuffers drops the task arenas. Every slot must have finished.
func (s *Scheduler) releaseBuffers() {
	for k := range s.slots {
		sl := &s.slots[k]
		if sl.busy() && !sl.finished() {
			panic(fmt.Sprintf("pipeline: releasing buffers while %s task for %v is running", sl.kind, sl.coord))
		}
		sl.task = nil
	}
	if s.terrainJob.chunk != nil {
		s.chunkPool.Release(s.terrainJob.chunk)
		s.terrainJob.chunk = nil
	}
	s.sunlightJob = nil
	s.meshJob = nil
	s.relightJob = nil
	s.editMeshJob = editMeshJob{}
}
