package pipeline

import "voxelterrain/internal/world"

// Spiral lists every chunk within radius of center (Chebyshev distance) in an
// outward square spiral: the centre, then each ring in turn, walking
// alternately along X and Z.
func Spiral(center world.ChunkCoord, radius int) []world.ChunkCoord {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]world.ChunkCoord, 0, side*side)

	x, z := 0, 0
	dx, dz := 1, 0
	for run := 1; len(out) < side*side; run++ {
		for leg := 0; leg < 2; leg++ {
			for i := 0; i < run; i++ {
				if abs(x) <= radius && abs(z) <= radius {
					out = append(out, center.Add(x, z))
				}
				x += dx
				z += dz
			}
			dx, dz = -dz, dx
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
