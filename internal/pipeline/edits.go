package pipeline

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelterrain/internal/lighting"
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

type EditKind int

const (
	EditDraw EditKind = iota
	EditErase
)

func (k EditKind) String() string {
	switch k {
	case EditDraw:
		return "draw"
	case EditErase:
		return "erase"
	default:
		return fmt.Sprintf("edit(%d)", int(k))
	}
}

// PendingEdit is a resolved edit waiting for, or going through, its cascade.
type PendingEdit struct {
	ID      uuid.UUID
	Kind    EditKind
	Voxel   world.VoxelCoord
	Changes []world.VoxelChange
	Queued  time.Time

	relit   bool
	targets []world.ChunkCoord
}

// LightAffecting reports whether any change flips a voxel between solid and air.
func (e *PendingEdit) LightAffecting() bool {
	for _, c := range e.Changes {
		if c.FlipsSolidity() {
			return true
		}
	}
	return false
}

// EditManager turns draw and erase requests into voxel changes and runs each
// through relight and remesh, one edit at a time. It is driven by the
// scheduler's tick and must be used from the same goroutine.
type EditManager struct {
	s       *Scheduler
	queue   editQueue
	blocked bool
	active  *PendingEdit

	// drawn keeps the applied changes of each draw, keyed by its voxel, so
	// erasing that voxel restores what the draw replaced.
	drawn map[world.VoxelCoord][]world.VoxelChange
}

func newEditManager(s *Scheduler) *EditManager {
	return &EditManager{s: s, drawn: make(map[world.VoxelCoord][]world.VoxelChange)}
}

// Blocked reports whether an edit is queued or its cascade is running.
func (m *EditManager) Blocked() bool {
	return m.blocked
}

// Draw fills the air voxel nearest to pos with the given solid density and
// material.
func (m *EditManager) Draw(pos mgl32.Vec3, density int8, material world.Material) (*PendingEdit, error) {
	if density >= 0 {
		return nil, fmt.Errorf("draw: density %d is not solid", density)
	}
	target, err := m.prepare(EditDraw, pos, false)
	if err != nil {
		return nil, err
	}
	return m.enqueue(EditDraw, target, density, material), nil
}

// Erase clears the solid voxel nearest to pos. Erasing a voxel placed by
// Draw, and untouched since, restores every voxel that draw changed.
func (m *EditManager) Erase(pos mgl32.Vec3) (*PendingEdit, error) {
	target, err := m.prepare(EditErase, pos, true)
	if err != nil {
		return nil, err
	}
	if set := m.undo(target); set != nil {
		return m.submit(EditErase, target, set), nil
	}
	return m.enqueue(EditErase, target, world.DensityAir, world.MaterialAir), nil
}

func (m *EditManager) prepare(kind EditKind, pos mgl32.Vec3, solid bool) (world.VoxelCoord, error) {
	if m.s.closed {
		return world.VoxelCoord{}, ErrClosed
	}
	if m.blocked {
		m.s.metrics.edits.WithLabelValues("rejected").Inc()
		return world.VoxelCoord{}, ErrEditInFlight
	}
	target, err := m.resolve(pos, solid)
	if err != nil {
		m.s.metrics.edits.WithLabelValues("unresolved").Inc()
		m.s.logger.Warn("edit position not resolved",
			zap.Stringer("kind", kind),
			zap.Float32("x", pos.X()),
			zap.Float32("y", pos.Y()),
			zap.Float32("z", pos.Z()),
			zap.Error(err))
		return world.VoxelCoord{}, fmt.Errorf("%s at %v: %w", kind, pos, err)
	}
	return target, nil
}

// resolve finds the voxel nearest to pos in the 3x3x3 block around its
// rounded position whose solidity matches. Rows at the bedrock floor and the
// sky ceiling are never edited, and neither are chunks outside the editable
// range.
func (m *EditManager) resolve(pos mgl32.Vec3, solid bool) (world.VoxelCoord, error) {
	origin := world.VoxelAt(pos)
	if m.s.chunks[origin.Chunk()] == nil {
		return world.VoxelCoord{}, ErrChunkNotLoaded
	}
	if !m.editable(origin.Chunk()) {
		return world.VoxelCoord{}, ErrOutOfRange
	}

	var best world.VoxelCoord
	bestDist := float32(-1)
	for dy := -1; dy <= 1; dy++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				v := origin.Add(dx, dy, dz)
				if v.Y <= world.FloorHeight || v.Y >= world.CeilingHeight {
					continue
				}
				chunk := m.s.chunks[v.Chunk()]
				if chunk == nil || !m.editable(v.Chunk()) {
					continue
				}
				x, y, z := v.Local()
				if chunk.Solid(world.Index(x, y, z)) != solid {
					continue
				}
				diff := v.Vec().Sub(pos)
				if d := diff.Dot(diff); bestDist < 0 || d < bestDist {
					best, bestDist = v, d
				}
			}
		}
	}
	if bestDist < 0 {
		return world.VoxelCoord{}, ErrNoVoxel
	}
	return best, nil
}

// editable reports whether an edit in coord can run its cascade: every chunk
// around it must be inside the interest radius, where chunk objects exist.
func (m *EditManager) editable(coord world.ChunkCoord) bool {
	return coord.Distance(m.s.center) < m.s.radius
}

// enqueue records the target change plus the vertical continuity fixes: an
// air voxel above becomes fully air and a solid voxel below fully solid, so
// the surface stays continuous across the edited voxel.
func (m *EditManager) enqueue(kind EditKind, target world.VoxelCoord, density int8, material world.Material) *PendingEdit {
	set := world.NewChangeSet()
	set.AddChange(m.change(target, density, material))

	if above := target.Add(0, 1, 0); above.InHeight() {
		if c := m.voxel(above); !c.solid {
			set.AddChange(m.change(above, world.DensityAir, c.material))
		}
	}
	if below := target.Add(0, -1, 0); below.InHeight() {
		if c := m.voxel(below); c.solid {
			set.AddChange(m.change(below, world.DensitySolid, c.material))
		}
	}

	return m.submit(kind, target, set)
}

// undo returns the changes reverting the draw that placed target, or nil
// when there is none or any voxel it wrote has changed since.
func (m *EditManager) undo(target world.VoxelCoord) *world.ChangeSet {
	changes, ok := m.drawn[target]
	if !ok {
		return nil
	}
	delete(m.drawn, target)
	set := world.NewChangeSet()
	for _, c := range changes {
		chunk := m.s.chunks[c.Chunk]
		if chunk == nil || chunk.Density[c.Index] != c.NewDensity || chunk.Material[c.Index] != c.NewMaterial {
			return nil
		}
		set.AddChange(world.VoxelChange{
			Chunk:       c.Chunk,
			Index:       c.Index,
			OldDensity:  c.NewDensity,
			NewDensity:  c.OldDensity,
			OldMaterial: c.NewMaterial,
			NewMaterial: c.OldMaterial,
		})
	}
	return set
}

// forget drops the draw records held for voxels in coord.
func (m *EditManager) forget(coord world.ChunkCoord) {
	for v := range m.drawn {
		if v.Chunk() == coord {
			delete(m.drawn, v)
		}
	}
}

func (m *EditManager) submit(kind EditKind, target world.VoxelCoord, set *world.ChangeSet) *PendingEdit {
	edit := &PendingEdit{
		ID:      uuid.New(),
		Kind:    kind,
		Voxel:   target,
		Changes: set.Changes(),
		Queued:  time.Now(),
	}
	m.queue.Enqueue(edit)
	m.blocked = true
	m.s.metrics.edits.WithLabelValues("queued").Inc()
	m.s.logger.Debug("edit queued",
		zap.Stringer("id", edit.ID),
		zap.Stringer("kind", kind),
		zap.Int("x", target.X),
		zap.Int("y", target.Y),
		zap.Int("z", target.Z),
		zap.Int("changes", len(edit.Changes)))
	return edit
}

type voxelState struct {
	solid    bool
	material world.Material
}

func (m *EditManager) voxel(v world.VoxelCoord) voxelState {
	chunk := m.s.mustChunk(v.Chunk())
	x, y, z := v.Local()
	idx := world.Index(x, y, z)
	return voxelState{solid: chunk.Solid(idx), material: chunk.Material[idx]}
}

func (m *EditManager) change(v world.VoxelCoord, density int8, material world.Material) world.VoxelChange {
	chunk := m.s.mustChunk(v.Chunk())
	x, y, z := v.Local()
	idx := world.Index(x, y, z)
	return world.VoxelChange{
		Chunk:       chunk.Key,
		Index:       idx,
		OldDensity:  chunk.Density[idx],
		NewDensity:  density,
		OldMaterial: chunk.Material[idx],
		NewMaterial: material,
	}
}

// drain starts the cascade of the next queued edit once the edit's chunk and
// all its neighbours have chunk objects.
func (m *EditManager) drain() {
	if m.active != nil {
		return
	}
	edit := m.queue.Peek()
	if edit == nil {
		return
	}
	center := edit.Voxel.Chunk()
	if m.s.chunks[center] == nil || !m.editable(center) {
		// The viewer moved away before the cascade could start.
		m.queue.Pop()
		m.active = edit
		m.finish("abandoned")
		return
	}
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			if m.s.objects[center.Add(dx, dz)] == nil {
				return
			}
		}
	}
	m.queue.Pop()
	m.active = edit

	for _, c := range edit.Changes {
		c.Apply(m.s.mustChunk(c.Chunk))
	}
	if edit.Kind == EditDraw {
		m.drawn[edit.Voxel] = edit.Changes
	}
	edit.relit = edit.LightAffecting()
	edit.targets = footprint(edit.Changes)

	if edit.relit {
		m.startRelight()
		return
	}
	m.startRemesh(edit.targets)
}

func (m *EditManager) startRelight() {
	edit := m.active
	center := edit.Voxel.Chunk()
	n, complete := volume.Gather(center, m.s.lookup)
	if !complete {
		panic(fmt.Sprintf("pipeline: relight neighbourhood of %v is incomplete", center))
	}

	job := m.s.relightJob
	job.volume.Load(&n, true)
	job.revisions = n.Revisions()
	job.seeds = job.seeds[:0]
	for _, c := range edit.Changes {
		if !c.FlipsSolidity() {
			continue
		}
		x, y, z := world.Coords(c.Index)
		dx, dz := c.Chunk.X-center.X, c.Chunk.Z-center.Z
		job.seeds = append(job.seeds, lighting.Seed{
			X: (dx+1)*world.ChunkSizeX + x,
			Y: y,
			Z: (dz+1)*world.ChunkSizeZ + z,
		})
	}
	m.s.submit(KindRelight, center, job.run)
}

func (m *EditManager) applyRelight() {
	edit := m.active
	center := m.s.slots[KindRelight].coord
	job := m.s.relightJob

	n, complete := volume.Gather(center, m.s.lookup)
	if !complete {
		// The voxels changed but the light cannot be written back.
		m.invalidate(center)
		m.finish("invalidated")
		return
	}
	if n.Revisions() != job.revisions {
		m.s.logger.Debug("discarding stale relight", zap.Stringer("id", edit.ID))
		m.startRelight()
		return
	}

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			if !job.touched.At(dx, dz) {
				continue
			}
			job.volume.Store(dx, dz, job.light)
			n.At(dx, dz).CopyLight(job.light)
		}
	}
	m.startRemesh(union(edit.targets, job.touched.Chunks(center), job.touched.Readers(center)))
}

// invalidate sends every loaded chunk whose light may depend on the voxels
// around center back through the light stage, and every mesh that reads
// those chunks back through the mesh stage.
func (m *EditManager) invalidate(center world.ChunkCoord) {
	for dz := -2; dz <= 2; dz++ {
		for dx := -2; dx <= 2; dx++ {
			coord := center.Add(dx, dz)
			chunk := m.s.chunks[coord]
			if chunk == nil {
				continue
			}
			if abs(dx) <= 1 && abs(dz) <= 1 {
				chunk.Clear(world.FlagLights)
				if coord.Distance(m.s.center) <= m.s.radius+lightMargin {
					m.s.lightQueue.Push(coord)
				}
			}
			m.s.requeueMesh(coord, chunk)
		}
	}
}

// startRemesh meshes every target whose neighbourhood is lit. Targets that
// cannot be meshed yet lose their mesh flag and go back to the mesh stage.
func (m *EditManager) startRemesh(targets []world.ChunkCoord) {
	job := &m.s.editMeshJob
	job.reset()
	for _, coord := range targets {
		chunk := m.s.chunks[coord]
		if chunk == nil {
			continue
		}
		n, complete := volume.Gather(coord, m.s.lookup)
		if !complete || !allLit(&n) {
			m.s.requeueMesh(coord, chunk)
			continue
		}
		mj := job.add(coord)
		mj.volume.Load(&n)
		mj.revisions = n.Revisions()
	}
	if len(job.targets) == 0 {
		m.finish("applied")
		return
	}
	m.s.submit(KindEditMesh, m.active.Voxel.Chunk(), job.run)
}

func (m *EditManager) applyRemesh() {
	job := &m.s.editMeshJob
	for i, coord := range job.targets {
		chunk := m.s.chunks[coord]
		if chunk == nil {
			continue
		}
		mj := job.meshes[i]
		if !m.s.fresh(coord, mj.revisions) {
			m.s.requeueMesh(coord, chunk)
			continue
		}
		m.s.upload(coord, chunk, &mj.data)
	}
	m.finish("applied")
}

func (m *EditManager) finish(result string) {
	edit := m.active
	m.active = nil
	m.blocked = m.queue.Len() > 0
	m.s.metrics.edits.WithLabelValues(result).Inc()
	m.s.logger.Info("edit cascade complete",
		zap.Stringer("id", edit.ID),
		zap.Stringer("kind", edit.Kind),
		zap.String("result", result),
		zap.Bool("relit", edit.relit),
		zap.Int("changes", len(edit.Changes)),
		zap.Int("chunks", len(edit.targets)),
		zap.Duration("elapsed", time.Since(edit.Queued)))
}

// footprint lists the chunks whose meshes read any changed voxel. A mesh
// reads one voxel beyond its low edges and two beyond its high edges.
func footprint(changes []world.VoxelChange) []world.ChunkCoord {
	set := world.NewChangeSet()
	for _, c := range changes {
		set.AddChange(c)
		x, _, z := world.Coords(c.Index)
		for _, dx := range volume.MeshReaders(x) {
			for _, dz := range volume.MeshReaders(z) {
				set.AddChunk(c.Chunk.Add(dx, dz))
			}
		}
	}
	return set.DirtyChunks()
}

func union(lists ...[]world.ChunkCoord) []world.ChunkCoord {
	set := world.NewChangeSet()
	for _, list := range lists {
		for _, c := range list {
			set.AddChunk(c)
		}
	}
	return set.DirtyChunks()
}
