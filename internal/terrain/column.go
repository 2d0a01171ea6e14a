package terrain

import (
	"math"

	"voxelterrain/internal/world"
)

const (
	// MinHeight and MaxHeight bound the analytic surface so the straddling
	// voxel pair always sits between the bedrock floor and the sky ceiling.
	MinHeight = world.FloorHeight + 1
	MaxHeight = world.CeilingHeight - 2
)

// DensityAt maps an analytic surface height to the density of voxel row y.
//
// The crossing lies on the vertical edge [k, k+1] with k = floor(height). When
// the fractional part t is below one half, voxel k carries a partial solid
// density and k+1 is fully air; otherwise k is fully solid and k+1 carries a
// partial air density. Both cases interpolate back to k+t once non-negative
// densities are biased by one, which is what the mesher does.
func DensityAt(height float64, y int) int8 {
	height = clampFloat(height, MinHeight, MaxHeight)
	k := int(math.Floor(height))
	t := height - float64(k)

	switch {
	case y < k:
		return world.DensitySolid
	case y == k:
		if t >= 0.5 {
			return world.DensitySolid
		}
		mag := math.Round(128 * t / (1 - t))
		if mag < 1 {
			mag = 1
		}
		if mag > 128 {
			mag = 128
		}
		return int8(-mag)
	case y == k+1:
		if t < 0.5 {
			return world.DensityAir
		}
		biased := math.Round(128 * (1 - t) / t)
		d := clampFloat(biased-1, 0, 127)
		return int8(d)
	default:
		return world.DensityAir
	}
}

// SurfaceRow returns the topmost solid row for the analytic height.
func SurfaceRow(height float64) int {
	height = clampFloat(height, MinHeight, MaxHeight)
	return int(math.Floor(height))
}

// SetColumn writes one column for the analytic height using a plain layering:
// bedrock floor, stone, dirtDepth rows of dirt, then the surface material.
// The air voxel resting on the surface carries the surface material as the
// boundary material. Rows at or above the ceiling stay air.
func SetColumn(chunk *world.Chunk, x, z int, height float64, surface world.Material, dirtDepth int) {
	top := SurfaceRow(height)
	for y := 0; y < world.ChunkHeight; y++ {
		idx := world.Index(x, y, z)
		switch {
		case y <= world.FloorHeight:
			chunk.Density[idx] = world.DensitySolid
			chunk.Material[idx] = world.MaterialBedrock
		case y >= world.CeilingHeight:
			chunk.Density[idx] = world.DensityAir
			chunk.Material[idx] = world.MaterialAir
		default:
			d := DensityAt(height, y)
			chunk.Density[idx] = d
			switch {
			case d >= 0 && y == top+1:
				chunk.Material[idx] = surface
			case d >= 0:
				chunk.Material[idx] = world.MaterialAir
			case y == top:
				chunk.Material[idx] = surface
			case y >= top-dirtDepth:
				chunk.Material[idx] = world.MaterialDirt
			default:
				chunk.Material[idx] = world.MaterialStone
			}
		}
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
