package volume

import "voxelterrain/internal/world"

const (
	// LightSpan is the horizontal size of the 3x3 chunk light volume.
	LightSpan = 3 * world.ChunkSizeX
	// LightCells is the number of cells in a light volume.
	LightCells = LightSpan * LightSpan * world.ChunkHeight
)

// LightVolume is the 48x48x256 merged solidity and light field of a
// neighbourhood, with the centre chunk occupying x,z in [16, 32).
type LightVolume struct {
	Solid []bool
	Light []uint8
}

func NewLightVolume() *LightVolume {
	return &LightVolume{
		Solid: make([]bool, LightCells),
		Light: make([]uint8, LightCells),
	}
}

// LightIndex flattens volume coordinates.
func LightIndex(x, y, z int) int {
	return (y*LightSpan+z)*LightSpan + x
}

// LightCoords expands a volume index.
func LightCoords(index int) (x, y, z int) {
	x = index % LightSpan
	rest := index / LightSpan
	return x, rest / LightSpan, rest % LightSpan
}

// InLight reports whether the coordinates lie inside the volume.
func InLight(x, y, z int) bool {
	return x >= 0 && x < LightSpan && z >= 0 && z < LightSpan && y >= 0 && y < world.ChunkHeight
}

// Load copies solidity and, when withLight is set, the persisted light of
// every chunk in n. Missing chunks load as unlit air.
func (v *LightVolume) Load(n *Neighborhood, withLight bool) {
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			v.loadChunk(n.At(dx, dz), (dx+1)*world.ChunkSizeX, (dz+1)*world.ChunkSizeZ, withLight)
		}
	}
}

func (v *LightVolume) loadChunk(c *world.Chunk, ox, oz int, withLight bool) {
	for y := 0; y < world.ChunkHeight; y++ {
		for z := 0; z < world.ChunkSizeZ; z++ {
			dst := LightIndex(ox, y, oz+z)
			if c == nil {
				for x := 0; x < world.ChunkSizeX; x++ {
					v.Solid[dst+x] = false
					v.Light[dst+x] = 0
				}
				continue
			}
			src := world.Index(0, y, z)
			for x := 0; x < world.ChunkSizeX; x++ {
				v.Solid[dst+x] = c.Density[src+x] < 0
			}
			if withLight {
				copy(v.Light[dst:dst+world.ChunkSizeX], c.Light[src:src+world.ChunkSizeX])
			} else {
				clear(v.Light[dst : dst+world.ChunkSizeX])
			}
		}
	}
}

// Store copies the light of the chunk at offset (dx, dz) into dst, a
// chunk-sized light array.
func (v *LightVolume) Store(dx, dz int, dst []uint8) {
	ox := (dx + 1) * world.ChunkSizeX
	oz := (dz + 1) * world.ChunkSizeZ
	for y := 0; y < world.ChunkHeight; y++ {
		for z := 0; z < world.ChunkSizeZ; z++ {
			src := LightIndex(ox, y, oz+z)
			copy(dst[world.Index(0, y, z):world.Index(0, y, z)+world.ChunkSizeX], v.Light[src:src+world.ChunkSizeX])
		}
	}
}

// ChunkOf returns the neighbourhood offset of a volume cell.
func ChunkOf(x, z int) (dx, dz int) {
	return x/world.ChunkSizeX - 1, z/world.ChunkSizeZ - 1
}
