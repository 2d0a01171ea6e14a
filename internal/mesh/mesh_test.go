package mesh

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelterrain/internal/terrain"
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

func TestTablesCoverEveryCase(t *testing.T) {
	for c := 0; c < 256; c++ {
		class := regularCellClass[c]
		require.Less(t, int(class), len(regularCellData), "case %#02x", c)

		vertices, triangles := cellGeometry(uint8(c))
		require.LessOrEqual(t, vertices, MaxCellVertices)
		require.LessOrEqual(t, triangles, MaxCellTriangles)

		crossings := 0
		for _, e := range cellEdgeCorners {
			if (c>>e[0])&1 != (c>>e[1])&1 {
				crossings++
			}
		}
		require.Equal(t, crossings, vertices, "case %#02x", c)

		for k := 0; k < vertices; k++ {
			c0, c1 := edgeCorners(regularVertexData[c][k])
			require.Less(t, c0, c1)
			require.NotEqual(t, (c>>c0)&1, (c>>c1)&1, "case %#02x edge %d does not cross", c, k)
		}

		indices := regularCellIndices[class]
		n := 0
		for indices[n] != sentinel {
			require.GreaterOrEqual(t, int(indices[n]), 0)
			require.Less(t, int(indices[n]), vertices)
			n++
		}
		require.Equal(t, 3*triangles, n, "case %#02x", c)
	}

	v, tri := cellGeometry(0x00)
	assert.Zero(t, v+tri)
	v, tri = cellGeometry(0xFF)
	assert.Zero(t, v+tri)
}

func TestTablesAreClosedUnderComplement(t *testing.T) {
	// A case and its complement cross the same edges.
	for c := 1; c < 255; c++ {
		v0, _ := cellGeometry(uint8(c))
		v1, _ := cellGeometry(uint8(^c))
		require.Equal(t, v0, v1, "case %#02x", c)
	}
}

func flatVolume(t *testing.T, height float64, light uint8) *volume.MeshVolume {
	t.Helper()
	var n volume.Neighborhood
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			c := world.NewChunk(world.ChunkCoord{X: dx, Z: dz})
			for z := 0; z < world.ChunkSizeZ; z++ {
				for x := 0; x < world.ChunkSizeX; x++ {
					terrain.SetColumn(c, x, z, height, world.MaterialGrass, 3)
				}
			}
			for i := range c.Light {
				c.Light[i] = light
			}
			n.Set(dx, dz, c)
		}
	}
	v := volume.NewMeshVolume()
	v.Load(&n)
	return v
}

func TestExtractFlatTerrain(t *testing.T) {
	v := flatVolume(t, 100, world.PackLight(world.MaxLight, 0))
	var data Data
	NewExtractor().Extract(v, &data)

	require.False(t, data.Empty())
	require.Len(t, data.Vertices, 4*world.ChunkSizeX*world.ChunkSizeZ)
	require.Equal(t, 2*world.ChunkSizeX*world.ChunkSizeZ, data.Triangles())

	up := mgl32.Vec3{0, 1, 0}
	for _, vert := range data.Vertices {
		require.GreaterOrEqual(t, vert.Position.Y(), float32(99))
		require.LessOrEqual(t, vert.Position.Y(), float32(101))
		require.InDelta(t, 100, vert.Position.Y(), 0.01)
		require.Greater(t, vert.Normal.Dot(up), float32(math.Cos(math.Pi/180)))

		require.Equal(t, mgl32.Vec4{1, 0, 0, 0}, vert.WeightsA)
		require.Equal(t, mgl32.Vec4{}, vert.WeightsB)
		require.Equal(t, float32(world.MaterialGrass), vert.MaterialsA[0])
		require.InDelta(t, 1, vert.Light[0], 1e-6)
		require.Zero(t, vert.Light[1])
	}

	for i := 0; i < len(data.Indices); i += 3 {
		a := data.Vertices[data.Indices[i]].Position
		b := data.Vertices[data.Indices[i+1]].Position
		c := data.Vertices[data.Indices[i+2]].Position
		require.Greater(t, b.Sub(a).Cross(c.Sub(a)).Y(), float32(0), "triangle %d faces down", i/3)
	}
}

func TestExtractBreakpoints(t *testing.T) {
	v := flatVolume(t, 100, 0)
	var data Data
	NewExtractor().Extract(v, &data)

	surfaceLayer := 100 / LayerHeight
	total := Breakpoint{Vertices: len(data.Vertices), Indices: len(data.Indices)}
	for layer := 0; layer < LayerCount; layer++ {
		if layer <= surfaceLayer {
			require.Equal(t, Breakpoint{}, data.Breakpoints[layer], "layer %d", layer)
		} else {
			require.Equal(t, total, data.Breakpoints[layer], "layer %d", layer)
		}
	}

	positions, indices := data.Layer(surfaceLayer)
	require.Len(t, positions, total.Vertices)
	require.Len(t, indices, total.Indices)

	positions, indices = data.Layer(0)
	require.Empty(t, positions)
	require.Empty(t, indices)
}

func TestLayersRebaseIndices(t *testing.T) {
	v := volume.NewMeshVolume()
	for i := range v.Density {
		v.Density[i] = world.DensityAir
	}
	// One solid voxel in layer 1 and one in layer 3.
	for _, y := range []int{20, 50} {
		idx := volume.MeshIndex(8+volume.MeshHalo, y, 8+volume.MeshHalo)
		v.Density[idx] = world.DensitySolid
		v.Material[idx] = world.MaterialStone
	}
	var data Data
	NewExtractor().Extract(v, &data)

	for _, layer := range []int{1, 3} {
		positions, indices := data.Layer(layer)
		require.NotEmpty(t, indices, "layer %d", layer)
		for _, i := range indices {
			require.Less(t, int(i), len(positions))
		}
		for _, p := range positions {
			require.GreaterOrEqual(t, p.Y(), float32(layer*LayerHeight))
			require.LessOrEqual(t, p.Y(), float32((layer+1)*LayerHeight))
		}
	}
	_, indices := data.Layer(2)
	require.Empty(t, indices)
}

func TestExtractSingleVoxelFacesOutward(t *testing.T) {
	v := volume.NewMeshVolume()
	for i := range v.Density {
		v.Density[i] = world.DensityAir
	}
	center := mgl32.Vec3{5, 50, 5}
	solid := volume.MeshIndex(5+volume.MeshHalo, 50, 5+volume.MeshHalo)
	v.Density[solid] = world.DensitySolid
	v.Material[solid] = world.MaterialStone

	var data Data
	NewExtractor().Extract(v, &data)
	require.Len(t, data.Vertices, 8*3)
	require.Equal(t, 8, data.Triangles())

	for _, vert := range data.Vertices {
		out := vert.Position.Sub(center)
		require.Greater(t, vert.Normal.Dot(out), float32(0))
	}
	for i := 0; i < len(data.Indices); i += 3 {
		a := data.Vertices[data.Indices[i]].Position
		b := data.Vertices[data.Indices[i+1]].Position
		c := data.Vertices[data.Indices[i+2]].Position
		centroid := a.Add(b).Add(c).Mul(1.0 / 3)
		require.Greater(t, b.Sub(a).Cross(c.Sub(a)).Dot(centroid.Sub(center)), float32(0))
	}
}

func TestMaterialWeightsUseFirstMatchingCorner(t *testing.T) {
	v := volume.NewMeshVolume()
	for i := range v.Density {
		v.Density[i] = world.DensityAir
	}
	solid := volume.MeshIndex(5+volume.MeshHalo, 50, 5+volume.MeshHalo)
	v.Density[solid] = world.DensitySolid
	v.Material[solid] = world.MaterialStone
	// An air voxel that still carries the solid's material.
	v.Material[volume.MeshIndex(4+volume.MeshHalo, 50, 5+volume.MeshHalo)] = world.MaterialStone

	var data Data
	NewExtractor().Extract(v, &data)

	// Cells are emitted in y, z, x order. The cell with lower corner
	// (4,49,4) is the first to see the voxel; there the voxel is corner 7 and
	// the stone-tagged air voxel is corner 6, which wins.
	require.NotEmpty(t, data.Vertices)
	first := data.Vertices[0]
	require.Equal(t, mgl32.Vec4{}, first.WeightsA)
	require.Equal(t, mgl32.Vec4{0, 0, 1, 0}, first.WeightsB)
	require.Equal(t, mgl32.Vec4{0, 0, float32(world.MaterialStone), float32(world.MaterialStone)}, first.MaterialsB)

	// The cell with lower corner (5,50,5) has the solid voxel as corner 0.
	last := data.Vertices[len(data.Vertices)-1]
	require.Equal(t, mgl32.Vec4{1, 0, 0, 0}, last.WeightsA)
}
