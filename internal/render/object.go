// Package render defines the handle the pipeline uses to hand finished
// geometry to a renderer and physics engine.
package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/mesh"
	"voxelterrain/internal/world"
)

// ChunkObject owns the renderer mesh and the per-layer collision meshes of one
// chunk. Implementations copy the slices they are given.
type ChunkObject interface {
	SetRenderer(vertices, normals []mgl32.Vec3, indices []uint32,
		weightsA, weightsB, materialIdsA, materialIdsB []mgl32.Vec4, lights []mgl32.Vec2)
	SetCollider(layer int, vertices []mgl32.Vec3, indices []uint32)
	Activate()
	Deactivate()
	IsActive() bool
	Destroy()
}

// Factory creates a chunk object the first time a chunk is meshed.
type Factory interface {
	Create(coord world.ChunkCoord) ChunkObject
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(coord world.ChunkCoord) ChunkObject

func (f FactoryFunc) Create(coord world.ChunkCoord) ChunkObject {
	return f(coord)
}

// Apply uploads data to obj: the whole mesh to the renderer and each layer to
// its collider.
func Apply(obj ChunkObject, data *mesh.Data) {
	s := data.Streams()
	obj.SetRenderer(s.Positions, s.Normals, s.Indices, s.WeightsA, s.WeightsB, s.MaterialsA, s.MaterialsB, s.Lights)
	for layer := 0; layer < mesh.LayerCount; layer++ {
		vertices, indices := data.Layer(layer)
		obj.SetCollider(layer, vertices, indices)
	}
}
