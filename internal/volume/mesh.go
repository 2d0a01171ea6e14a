package volume

import "voxelterrain/internal/world"

const (
	// MeshSpan is the padded horizontal size: the chunk plus one voxel of halo
	// below and two above, enough for cell corners and their gradients.
	MeshSpan = world.ChunkSizeX + 3
	// MeshCells is the number of cells in a mesh volume.
	MeshCells = MeshSpan * MeshSpan * world.ChunkHeight
	// MeshHalo is the padded index of local coordinate zero.
	MeshHalo = 1
)

// MeshVolume is the 19x256x19 padded density, material and light field for
// meshing one chunk.
type MeshVolume struct {
	Density  []int8
	Material []uint8
	Light    []uint8
}

func NewMeshVolume() *MeshVolume {
	return &MeshVolume{
		Density:  make([]int8, MeshCells),
		Material: make([]uint8, MeshCells),
		Light:    make([]uint8, MeshCells),
	}
}

// MeshReaders returns the chunk offsets, along one axis, whose mesh volumes
// include local coordinate v: the own chunk, the low neighbour for the two
// lowest rows and the high neighbour for the highest.
func MeshReaders(v int) []int {
	out := []int{0}
	if v < MeshSpan-world.ChunkSizeX-MeshHalo {
		out = append(out, -1)
	}
	if v >= world.ChunkSizeX-MeshHalo {
		out = append(out, 1)
	}
	return out
}

// MeshIndex flattens padded coordinates; local chunk x maps to px = x+1.
func MeshIndex(px, y, pz int) int {
	return (y*MeshSpan+pz)*MeshSpan + px
}

// Load copies the padded region around the centre of n. Missing chunks load
// as unlit air.
func (v *MeshVolume) Load(n *Neighborhood) {
	for pz := 0; pz < MeshSpan; pz++ {
		lz := pz - MeshHalo
		dz, cz := split(lz, world.ChunkSizeZ)
		for px := 0; px < MeshSpan; px++ {
			lx := px - MeshHalo
			dx, cx := split(lx, world.ChunkSizeX)
			c := n.At(dx, dz)
			for y := 0; y < world.ChunkHeight; y++ {
				dst := MeshIndex(px, y, pz)
				if c == nil {
					v.Density[dst] = world.DensityAir
					v.Material[dst] = world.MaterialAir
					v.Light[dst] = 0
					continue
				}
				src := world.Index(cx, y, cz)
				v.Density[dst] = c.Density[src]
				v.Material[dst] = c.Material[src]
				v.Light[dst] = c.Light[src]
			}
		}
	}
}

// split maps a local coordinate that may spill into a neighbour to the
// neighbour offset and the coordinate inside it.
func split(local, size int) (offset, inside int) {
	switch {
	case local < 0:
		return -1, local + size
	case local >= size:
		return 1, local - size
	default:
		return 0, local
	}
}
