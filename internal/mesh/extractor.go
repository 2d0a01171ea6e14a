// Package mesh extracts a smooth isosurface from a padded chunk volume with
// marching cubes.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

// Extractor turns a mesh volume into triangles. It keeps per-cell scratch
// state, so each goroutine needs its own.
type Extractor struct {
	density  [cornerCount]int8
	material [cornerCount]uint8
	corner   [cornerCount][3]int // padded volume coordinates

	materialsA mgl32.Vec4
	materialsB mgl32.Vec4
}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract meshes every cell whose lower corner lies in the chunk and writes
// the result into out, reusing its buffers.
func (e *Extractor) Extract(v *volume.MeshVolume, out *Data) {
	out.Reset()
	for y := 0; y < world.ChunkHeight-1; y++ {
		if y%LayerHeight == 0 {
			out.Breakpoints[y/LayerHeight] = Breakpoint{
				Vertices: len(out.Vertices),
				Indices:  len(out.Indices),
			}
		}
		for z := 0; z < world.ChunkSizeZ; z++ {
			for x := 0; x < world.ChunkSizeX; x++ {
				e.cell(v, x, y, z, out)
			}
		}
	}
}

func (e *Extractor) cell(v *volume.MeshVolume, x, y, z int, out *Data) {
	var c uint8
	for i := 0; i < cornerCount; i++ {
		px := x + i&1 + volume.MeshHalo
		cy := y + (i>>1)&1
		pz := z + (i>>2)&1 + volume.MeshHalo
		idx := volume.MeshIndex(px, cy, pz)
		e.corner[i] = [3]int{px, cy, pz}
		e.density[i] = v.Density[idx]
		e.material[i] = v.Material[idx]
		if e.density[i] < 0 {
			c |= 1 << i
		}
	}
	if c == 0 || c == 0xFF {
		return
	}

	for i := 0; i < 4; i++ {
		e.materialsA[i] = float32(e.material[i])
		e.materialsB[i] = float32(e.material[i+4])
	}

	vertices, triangles := cellGeometry(c)
	base := uint32(len(out.Vertices))
	for k := 0; k < vertices; k++ {
		c0, c1 := edgeCorners(regularVertexData[c][k])
		out.Vertices = append(out.Vertices, e.vertex(v, c0, c1))
	}

	// Table polygons wind towards the solid side; emitting each triangle
	// backwards makes them face the air.
	indices := &regularCellIndices[regularCellClass[c]]
	for t := 0; t < triangles; t++ {
		a, b, d := indices[3*t], indices[3*t+1], indices[3*t+2]
		out.Indices = append(out.Indices, base+uint32(d), base+uint32(b), base+uint32(a))
	}
}

func (e *Extractor) vertex(v *volume.MeshVolume, c0, c1 int) Vertex {
	a0, a1 := bias(e.density[c0]), bias(e.density[c1])
	t := a0 / (a0 - a1)
	w0, w1 := 1-t, t

	p0, p1 := e.position(c0), e.position(c1)
	normal := gradient(v, e.corner[c0]).Mul(w0).Add(gradient(v, e.corner[c1]).Mul(w1))
	if normal.Len() > 0 {
		normal = normal.Normalize()
	}

	material := e.material[c1]
	if e.density[c0] < 0 {
		material = e.material[c0]
	}

	sun0, src0 := dilatedLight(v, e.corner[c0])
	sun1, src1 := dilatedLight(v, e.corner[c1])

	vert := Vertex{
		Position:   p0.Mul(w0).Add(p1.Mul(w1)),
		Normal:     normal,
		MaterialsA: e.materialsA,
		MaterialsB: e.materialsB,
		Light: mgl32.Vec2{
			(w0*sun0 + w1*sun1) / world.MaxLight,
			(w0*src0 + w1*src1) / world.MaxLight,
		},
	}
	for i := 0; i < cornerCount; i++ {
		if e.material[i] != material {
			continue
		}
		if i < 4 {
			vert.WeightsA[i] = 1
		} else {
			vert.WeightsB[i-4] = 1
		}
		break
	}
	return vert
}

// position returns a corner's chunk-local coordinates.
func (e *Extractor) position(corner int) mgl32.Vec3 {
	p := e.corner[corner]
	return mgl32.Vec3{
		float32(p[0] - volume.MeshHalo),
		float32(p[1]),
		float32(p[2] - volume.MeshHalo),
	}
}

// bias shifts non-negative densities up by one so that the boundary voxel
// written by terrain generation lands on the exact crossing.
func bias(d int8) float32 {
	if d >= 0 {
		return float32(d) + 1
	}
	return float32(d)
}

// gradient sums the 26 neighbours' densities weighted by their offsets. The
// result points from solid towards air.
func gradient(v *volume.MeshVolume, p [3]int) mgl32.Vec3 {
	var g mgl32.Vec3
	for oy := -1; oy <= 1; oy++ {
		for oz := -1; oz <= 1; oz++ {
			for ox := -1; ox <= 1; ox++ {
				if ox == 0 && oy == 0 && oz == 0 {
					continue
				}
				d := float32(v.Density[clampedIndex(p[0]+ox, p[1]+oy, p[2]+oz)])
				g = g.Add(mgl32.Vec3{float32(ox) * d, float32(oy) * d, float32(oz) * d})
			}
		}
	}
	return g
}

// dilatedLight returns the brightest sun and source levels around a corner.
func dilatedLight(v *volume.MeshVolume, p [3]int) (sun, source float32) {
	var s, b uint8
	for oy := -1; oy <= 1; oy++ {
		for oz := -1; oz <= 1; oz++ {
			for ox := -1; ox <= 1; ox++ {
				l := v.Light[clampedIndex(p[0]+ox, p[1]+oy, p[2]+oz)]
				s = max(s, world.SunLight(l))
				b = max(b, world.SourceLight(l))
			}
		}
	}
	return float32(s), float32(b)
}

func clampedIndex(px, y, pz int) int {
	return volume.MeshIndex(
		min(max(px, 0), volume.MeshSpan-1),
		min(max(y, 0), world.ChunkHeight-1),
		min(max(pz, 0), volume.MeshSpan-1),
	)
}
