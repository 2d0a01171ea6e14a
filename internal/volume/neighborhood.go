// Package volume assembles the padded multi-chunk working volumes used by the
// lighting and meshing stages.
package volume

import "voxelterrain/internal/world"

// Neighborhood holds a chunk and its eight horizontal neighbours, indexed by
// offsets in [-1, 1]. Missing neighbours are nil.
type Neighborhood [9]*world.Chunk

// Lookup resolves a loaded chunk, or nil.
type Lookup func(world.ChunkCoord) *world.Chunk

// Gather collects the neighbourhood around center and reports whether all
// nine chunks are present.
func Gather(center world.ChunkCoord, lookup Lookup) (Neighborhood, bool) {
	var n Neighborhood
	complete := true
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			c := lookup(center.Add(dx, dz))
			if c == nil {
				complete = false
			}
			n[slot(dx, dz)] = c
		}
	}
	return n, complete
}

// At returns the chunk at the given offset from the centre.
func (n *Neighborhood) At(dx, dz int) *world.Chunk {
	return n[slot(dx, dz)]
}

// Set stores a chunk at the given offset.
func (n *Neighborhood) Set(dx, dz int, c *world.Chunk) {
	n[slot(dx, dz)] = c
}

// Center returns the middle chunk.
func (n *Neighborhood) Center() *world.Chunk {
	return n[4]
}

// Revisions snapshots the revision counter of every present chunk.
func (n *Neighborhood) Revisions() [9]uint64 {
	var out [9]uint64
	for i, c := range n {
		if c != nil {
			out[i] = c.Revision()
		}
	}
	return out
}

// Offsets lists the eight neighbour offsets in a fixed order.
var Offsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

func slot(dx, dz int) int {
	return (dz+1)*3 + (dx + 1)
}
