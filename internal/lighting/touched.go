package lighting

import (
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

// Touched records the outcome of a relight around a center chunk: which of
// the 3x3 chunks ended with different light, and which chunks of the 5x5
// ring around them have meshes that read a changed cell through their halo.
type Touched struct {
	light [3][3]bool
	reach [5][5]bool
}

// At reports whether the chunk at offset (dx, dz) changed.
func (t *Touched) At(dx, dz int) bool {
	return t.light[dz+1][dx+1]
}

// Any reports whether any chunk changed.
func (t *Touched) Any() bool {
	for _, row := range t.light {
		for _, v := range row {
			if v {
				return true
			}
		}
	}
	return false
}

// Chunks lists the changed chunks around center.
func (t *Touched) Chunks(center world.ChunkCoord) []world.ChunkCoord {
	var out []world.ChunkCoord
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			if t.At(dx, dz) {
				out = append(out, center.Add(dx, dz))
			}
		}
	}
	return out
}

// Readers lists the chunks around center whose meshes read a changed cell.
func (t *Touched) Readers(center world.ChunkCoord) []world.ChunkCoord {
	var out []world.ChunkCoord
	for dz := -2; dz <= 2; dz++ {
		for dx := -2; dx <= 2; dx++ {
			if t.reach[dz+2][dx+2] {
				out = append(out, center.Add(dx, dz))
			}
		}
	}
	return out
}

// mark flags the chunk holding light volume cell (x, z) and every chunk whose
// mesh halo covers it.
func (t *Touched) mark(x, z int) {
	dx, dz := volume.ChunkOf(x, z)
	t.light[dz+1][dx+1] = true
	for _, ox := range volume.MeshReaders(x % world.ChunkSizeX) {
		for _, oz := range volume.MeshReaders(z % world.ChunkSizeZ) {
			t.reach[dz+oz+2][dx+ox+2] = true
		}
	}
}
