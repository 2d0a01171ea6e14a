package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/world"
)

const (
	// LayerCount is the number of horizontal collision layers per chunk.
	LayerCount = 16
	// LayerHeight is the number of cell rows in one layer.
	LayerHeight = world.ChunkHeight / LayerCount
)

// Vertex is one interleaved output vertex. Material weights are one-hot over
// the eight cell corners, split across WeightsA (corners 0-3) and WeightsB
// (corners 4-7); MaterialsA and MaterialsB carry those corners' material ids.
// Light holds the sun and source levels scaled to [0, 1].
type Vertex struct {
	Position   mgl32.Vec3
	Normal     mgl32.Vec3
	WeightsA   mgl32.Vec4
	WeightsB   mgl32.Vec4
	MaterialsA mgl32.Vec4
	MaterialsB mgl32.Vec4
	Light      mgl32.Vec2
}

// Breakpoint marks where a collision layer starts in the vertex and index
// buffers.
type Breakpoint struct {
	Vertices int
	Indices  int
}

// Data is the extracted mesh of one chunk in chunk-local coordinates. Cells
// are emitted bottom-up, so each layer is a contiguous range of both buffers.
type Data struct {
	Vertices    []Vertex
	Indices     []uint32
	Breakpoints [LayerCount]Breakpoint
}

// Reset empties the buffers but keeps their capacity.
func (d *Data) Reset() {
	d.Vertices = d.Vertices[:0]
	d.Indices = d.Indices[:0]
	d.Breakpoints = [LayerCount]Breakpoint{}
}

// Empty reports whether the chunk produced no triangles.
func (d *Data) Empty() bool {
	return len(d.Indices) == 0
}

// Triangles returns the number of triangles.
func (d *Data) Triangles() int {
	return len(d.Indices) / 3
}

func (d *Data) layerEnd(layer int) Breakpoint {
	if layer+1 < LayerCount {
		return d.Breakpoints[layer+1]
	}
	return Breakpoint{Vertices: len(d.Vertices), Indices: len(d.Indices)}
}

// Layer returns collision layer i as its own positions and indices, rebased
// to start at vertex zero.
func (d *Data) Layer(layer int) ([]mgl32.Vec3, []uint32) {
	start, end := d.Breakpoints[layer], d.layerEnd(layer)
	positions := make([]mgl32.Vec3, 0, end.Vertices-start.Vertices)
	for _, v := range d.Vertices[start.Vertices:end.Vertices] {
		positions = append(positions, v.Position)
	}
	indices := make([]uint32, 0, end.Indices-start.Indices)
	for _, i := range d.Indices[start.Indices:end.Indices] {
		indices = append(indices, i-uint32(start.Vertices))
	}
	return positions, indices
}

// Streams is the mesh split into the per-attribute arrays a renderer takes.
type Streams struct {
	Positions  []mgl32.Vec3
	Normals    []mgl32.Vec3
	Indices    []uint32
	WeightsA   []mgl32.Vec4
	WeightsB   []mgl32.Vec4
	MaterialsA []mgl32.Vec4
	MaterialsB []mgl32.Vec4
	Lights     []mgl32.Vec2
}

// Streams copies the interleaved buffer into separate attribute arrays.
func (d *Data) Streams() Streams {
	n := len(d.Vertices)
	s := Streams{
		Positions:  make([]mgl32.Vec3, n),
		Normals:    make([]mgl32.Vec3, n),
		Indices:    append([]uint32(nil), d.Indices...),
		WeightsA:   make([]mgl32.Vec4, n),
		WeightsB:   make([]mgl32.Vec4, n),
		MaterialsA: make([]mgl32.Vec4, n),
		MaterialsB: make([]mgl32.Vec4, n),
		Lights:     make([]mgl32.Vec2, n),
	}
	for i, v := range d.Vertices {
		s.Positions[i] = v.Position
		s.Normals[i] = v.Normal
		s.WeightsA[i] = v.WeightsA
		s.WeightsB[i] = v.WeightsB
		s.MaterialsA[i] = v.MaterialsA
		s.MaterialsB[i] = v.MaterialsB
		s.Lights[i] = v.Light
	}
	return s
}
