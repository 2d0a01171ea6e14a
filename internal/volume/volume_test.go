package volume

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"voxelterrain/internal/world"
)

// markedNeighborhood fills each chunk's light with a per-slot marker and makes
// voxel (0,10,0) of every chunk solid.
func markedNeighborhood() Neighborhood {
	var n Neighborhood
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			c := world.NewChunk(world.ChunkCoord{X: dx, Z: dz})
			marker := uint8(slot(dx, dz) + 1)
			for i := range c.Light {
				c.Light[i] = marker
			}
			c.SetVoxel(world.Index(0, 10, 0), -50, world.MaterialStone)
			n.Set(dx, dz, c)
		}
	}
	return n
}

func TestGatherReportsMissingNeighbours(t *testing.T) {
	loaded := map[world.ChunkCoord]*world.Chunk{}
	for _, off := range Offsets {
		coord := world.ChunkCoord{X: 10 + off[0], Z: off[1]}
		loaded[coord] = world.NewChunk(coord)
	}
	lookup := func(c world.ChunkCoord) *world.Chunk { return loaded[c] }

	_, ok := Gather(world.ChunkCoord{X: 10}, lookup)
	require.False(t, ok, "centre is missing")

	loaded[world.ChunkCoord{X: 10}] = world.NewChunk(world.ChunkCoord{X: 10})
	n, ok := Gather(world.ChunkCoord{X: 10}, lookup)
	require.True(t, ok)
	require.Equal(t, world.ChunkCoord{X: 9, Z: 1}, n.At(-1, 1).Key)
	require.Equal(t, world.ChunkCoord{X: 10}, n.Center().Key)
}

func TestLightVolumeLayout(t *testing.T) {
	n := markedNeighborhood()
	v := NewLightVolume()
	v.Load(&n, true)

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			ox, oz := (dx+1)*16, (dz+1)*16
			require.Equal(t, uint8(slot(dx, dz)+1), v.Light[LightIndex(ox+5, 77, oz+9)])
			require.True(t, v.Solid[LightIndex(ox, 10, oz)])
			require.False(t, v.Solid[LightIndex(ox+1, 10, oz)])
			gotDX, gotDZ := ChunkOf(ox+15, oz)
			require.Equal(t, [2]int{dx, dz}, [2]int{gotDX, gotDZ})
		}
	}

	x, y, z := LightCoords(LightIndex(47, 255, 3))
	require.Equal(t, [3]int{47, 255, 3}, [3]int{x, y, z})

	out := make([]uint8, world.VoxelsPerChunk)
	v.Store(1, -1, out)
	require.Equal(t, n.At(1, -1).Light, out)

	v.Load(&n, false)
	require.Zero(t, v.Light[LightIndex(20, 20, 20)])
}

func TestMeshVolumeHalo(t *testing.T) {
	n := markedNeighborhood()
	n.At(1, 0).SetVoxel(world.Index(1, 33, 4), -7, world.MaterialSand)
	n.At(-1, -1).SetVoxel(world.Index(15, 33, 15), -9, world.MaterialSnow)
	n.Set(1, 1, nil)

	v := NewMeshVolume()
	v.Load(&n)

	// Local x=17 is x=1 of the +X neighbour.
	require.Equal(t, int8(-7), v.Density[MeshIndex(17+MeshHalo, 33, 4+MeshHalo)])
	require.Equal(t, world.MaterialSand, v.Material[MeshIndex(17+MeshHalo, 33, 4+MeshHalo)])
	// Local (-1,-1) is the far corner of the (-1,-1) neighbour.
	require.Equal(t, int8(-9), v.Density[MeshIndex(0, 33, 0)])
	// Centre voxel.
	require.Equal(t, uint8(slot(0, 0)+1), v.Light[MeshIndex(MeshHalo+3, 50, MeshHalo+3)])
	// Missing neighbour loads as air.
	require.Equal(t, world.DensityAir, v.Density[MeshIndex(MeshSpan-1, 10, MeshSpan-1)])
	require.Zero(t, v.Light[MeshIndex(MeshSpan-1, 10, MeshSpan-1)])
}

func TestMeshReadersMatchHalo(t *testing.T) {
	for v := 0; v < world.ChunkSizeX; v++ {
		readers := MeshReaders(v)
		for o := -1; o <= 1; o++ {
			// Position of v in the padded volume of the chunk at offset o.
			p := v - o*world.ChunkSizeX + MeshHalo
			inside := p >= 0 && p < MeshSpan
			require.Equal(t, inside, slices.Contains(readers, o), "v=%d offset=%d", v, o)
		}
	}
}
