package world

import "sort"

// VoxelChange captures the before/after state of one voxel mutation.
type VoxelChange struct {
	Chunk       ChunkCoord
	Index       int
	OldDensity  int8
	NewDensity  int8
	OldMaterial Material
	NewMaterial Material
}

// Voxel returns the world voxel coordinate the change applies to.
func (c VoxelChange) Voxel() VoxelCoord {
	x, y, z := Coords(c.Index)
	origin := c.Chunk.Origin()
	return VoxelCoord{X: origin.X + x, Y: y, Z: origin.Z + z}
}

// FlipsSolidity reports whether the change turns air into solid or back.
func (c VoxelChange) FlipsSolidity() bool {
	return (c.OldDensity < 0) != (c.NewDensity < 0)
}

// Noop reports whether applying the change would leave the voxel untouched.
func (c VoxelChange) Noop() bool {
	return c.OldDensity == c.NewDensity && c.OldMaterial == c.NewMaterial
}

// Apply writes the new values into chunk.
func (c VoxelChange) Apply(chunk *Chunk) {
	chunk.SetVoxel(c.Index, c.NewDensity, c.NewMaterial)
}

// ChangeSet accumulates voxel changes and the chunks they dirty. Repeated
// changes to one voxel collapse into a single entry keeping the earliest
// before-state.
type ChangeSet struct {
	order   []VoxelChange
	byVoxel map[VoxelCoord]int
	chunks  map[ChunkCoord]struct{}
}

func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		byVoxel: make(map[VoxelCoord]int),
		chunks:  make(map[ChunkCoord]struct{}),
	}
}

func (s *ChangeSet) AddChange(change VoxelChange) {
	if s.byVoxel == nil {
		s.byVoxel = make(map[VoxelCoord]int)
	}
	key := change.Voxel()
	if i, ok := s.byVoxel[key]; ok {
		existing := s.order[i]
		change.OldDensity = existing.OldDensity
		change.OldMaterial = existing.OldMaterial
		s.order[i] = change
		return
	}
	s.byVoxel[key] = len(s.order)
	s.order = append(s.order, change)
	s.AddChunk(change.Chunk)
}

func (s *ChangeSet) AddChunk(coord ChunkCoord) {
	if s.chunks == nil {
		s.chunks = make(map[ChunkCoord]struct{})
	}
	s.chunks[coord] = struct{}{}
}

// Changes returns the changes in insertion order, skipping ones that ended up as no-ops.
func (s *ChangeSet) Changes() []VoxelChange {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]VoxelChange, 0, len(s.order))
	for _, change := range s.order {
		if change.Noop() {
			continue
		}
		out = append(out, change)
	}
	return out
}

// DirtyChunks lists every chunk touched, sorted for deterministic iteration.
func (s *ChangeSet) DirtyChunks() []ChunkCoord {
	if len(s.chunks) == 0 {
		return nil
	}
	out := make([]ChunkCoord, 0, len(s.chunks))
	for coord := range s.chunks {
		out = append(out, coord)
	}
	SortChunks(out)
	return out
}

// SortChunks orders coordinates by Z then X.
func SortChunks(coords []ChunkCoord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Z == coords[j].Z {
			return coords[i].X < coords[j].X
		}
		return coords[i].Z < coords[j].Z
	})
}
