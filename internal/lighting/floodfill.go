package lighting

import (
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

// FloodFill solves sunlight for a whole light volume from scratch. Its queue
// is reused across runs, so a FloodFill must not be shared between goroutines.
type FloodFill struct {
	queue []int32
}

func NewFloodFill() *FloodFill {
	return &FloodFill{queue: make([]int32, 0, volume.LightSpan*volume.LightSpan*4)}
}

// Run clears both light channels of v and recomputes sunlight: every open
// cell of the top row starts at full strength and the light spreads through
// non-solid cells, losing one level per step except straight down from a
// full-strength cell. Block light stays dark because nothing emits.
func (f *FloodFill) Run(v *volume.LightVolume) {
	clear(v.Light)
	q := f.queue[:0]

	top := (world.ChunkHeight - 1) * strideY
	for i := top; i < top+strideY; i++ {
		if v.Solid[i] {
			continue
		}
		v.Light[i] = Sun.with(v.Light[i], world.MaxLight)
		q = append(q, int32(i))
	}

	for head := 0; head < len(q); head++ {
		i := int(q[head])
		level := Sun.get(v.Light[i])
		if level <= 1 {
			continue
		}
		neighbours(i, func(n, dir int) {
			if v.Solid[n] {
				return
			}
			nl := Sun.get(v.Light[n])
			if dir == dirDown && level == world.MaxLight {
				if nl != world.MaxLight {
					v.Light[n] = Sun.with(v.Light[n], world.MaxLight)
					q = append(q, int32(n))
				}
				return
			}
			if nl+1 < level {
				v.Light[n] = Sun.with(v.Light[n], level-1)
				q = append(q, int32(n))
			}
		})
	}

	f.queue = q[:0]
}
