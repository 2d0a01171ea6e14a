// Package lighting propagates sun and block light through a merged 3x3 chunk
// volume, either from scratch or incrementally after edits.
package lighting

import (
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

// Channel selects one nibble of the packed light byte.
type Channel uint8

const (
	// Sun is the high nibble; it is seeded from the sky and falls straight
	// down through open air without decaying.
	Sun Channel = iota
	// Source is the low nibble for light emitted by blocks. No material emits
	// yet, so it only ever drains.
	Source
)

func (c Channel) get(light uint8) uint8 {
	if c == Sun {
		return world.SunLight(light)
	}
	return world.SourceLight(light)
}

func (c Channel) with(light, level uint8) uint8 {
	if c == Sun {
		return world.WithSun(light, level)
	}
	return world.WithSource(light, level)
}

// fallsFree reports whether full-strength light of this channel travels down
// without decay.
func (c Channel) fallsFree() bool {
	return c == Sun
}

const (
	strideX = 1
	strideZ = volume.LightSpan
	strideY = volume.LightSpan * volume.LightSpan

	dirDown = 5
)

// neighbours visits the in-bounds 6-connected neighbours of index. dir
// dirDown identifies the cell directly below.
func neighbours(index int, visit func(n, dir int)) {
	x, y, z := volume.LightCoords(index)
	if x+1 < volume.LightSpan {
		visit(index+strideX, 0)
	}
	if x > 0 {
		visit(index-strideX, 1)
	}
	if z+1 < volume.LightSpan {
		visit(index+strideZ, 2)
	}
	if z > 0 {
		visit(index-strideZ, 3)
	}
	if y+1 < world.ChunkHeight {
		visit(index+strideY, 4)
	}
	if y > 0 {
		visit(index-strideY, dirDown)
	}
}
