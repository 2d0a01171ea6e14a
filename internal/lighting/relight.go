package lighting

import (
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

// Seed marks a volume cell whose solidity flipped. The volume's Solid slice
// must already hold the new state.
type Seed struct {
	X, Y, Z int
}

// Index returns the seed's volume index.
func (s Seed) Index() int {
	return volume.LightIndex(s.X, s.Y, s.Z)
}

type removal struct {
	index int32
	level uint8
}

// Relighter repairs a light volume after solidity edits without re-seeding
// the whole volume: dependent light is first removed, then the surviving
// light spreads back in. The result matches FloodFill.Run on the final
// solidity. Scratch buffers are reused, so a Relighter is not safe for
// concurrent use.
type Relighter struct {
	removals []removal
	spread   []int32

	seen      []bool
	dirty     []int32
	original  []uint8
	seedLight []uint8
}

func NewRelighter() *Relighter {
	return &Relighter{
		seen: make([]bool, volume.LightCells),
	}
}

// Relight updates v for the flipped seeds and reports which chunks of the
// neighbourhood ended with different light.
func (r *Relighter) Relight(v *volume.LightVolume, seeds []Seed) Touched {
	r.seedLight = r.seedLight[:0]
	for _, s := range seeds {
		i := s.Index()
		r.seedLight = append(r.seedLight, v.Light[i])
		if v.Solid[i] && v.Light[i] != 0 {
			r.record(v, i)
			v.Light[i] = 0
		}
	}

	for _, ch := range [...]Channel{Sun, Source} {
		r.seed(v, ch, seeds)
		r.remove(v, ch)
		r.propagate(v, ch)
	}

	return r.collect(v)
}

// seed queues the work each flipped cell causes for one channel. Cells that
// became solid were already darkened, so their old level comes from the light
// captured before that.
func (r *Relighter) seed(v *volume.LightVolume, ch Channel, seeds []Seed) {
	r.removals = r.removals[:0]
	r.spread = r.spread[:0]
	for k, s := range seeds {
		i := s.Index()
		if v.Solid[i] {
			if level := ch.get(r.seedLight[k]); level > 0 {
				r.removals = append(r.removals, removal{index: int32(i), level: level})
			}
			continue
		}
		neighbours(i, func(n, _ int) {
			if !v.Solid[n] && ch.get(v.Light[n]) > 0 {
				r.spread = append(r.spread, int32(n))
			}
		})
	}
}

func (r *Relighter) remove(v *volume.LightVolume, ch Channel) {
	for head := 0; head < len(r.removals); head++ {
		e := r.removals[head]
		neighbours(int(e.index), func(n, dir int) {
			nl := ch.get(v.Light[n])
			if nl == 0 {
				return
			}
			switch {
			case ch.fallsFree() && dir == dirDown && nl == world.MaxLight && e.level >= world.MaxLight:
				// The column below was lit only through this cell; the
				// inflated level forces its own cascade.
				r.set(v, ch, n, 0)
				r.removals = append(r.removals, removal{index: int32(n), level: world.MaxLight + 1})
			case nl < e.level && !(ch.fallsFree() && nl == world.MaxLight):
				r.set(v, ch, n, 0)
				r.removals = append(r.removals, removal{index: int32(n), level: nl})
			default:
				r.spread = append(r.spread, int32(n))
			}
		})
	}
}

func (r *Relighter) propagate(v *volume.LightVolume, ch Channel) {
	for head := 0; head < len(r.spread); head++ {
		i := int(r.spread[head])
		level := ch.get(v.Light[i])
		neighbours(i, func(n, dir int) {
			if v.Solid[n] {
				return
			}
			nl := ch.get(v.Light[n])
			if ch.fallsFree() && dir == dirDown && level == world.MaxLight {
				if nl != world.MaxLight {
					r.set(v, ch, n, world.MaxLight)
					r.spread = append(r.spread, int32(n))
				}
				return
			}
			switch {
			case level > nl+1:
				r.set(v, ch, n, level-1)
				r.spread = append(r.spread, int32(n))
			case level+1 < nl:
				r.spread = append(r.spread, int32(n))
			}
		})
	}
}

func (r *Relighter) set(v *volume.LightVolume, ch Channel, i int, level uint8) {
	r.record(v, i)
	v.Light[i] = ch.with(v.Light[i], level)
}

// record remembers the first value a cell held during this run.
func (r *Relighter) record(v *volume.LightVolume, i int) {
	if r.seen[i] {
		return
	}
	r.seen[i] = true
	r.dirty = append(r.dirty, int32(i))
	r.original = append(r.original, v.Light[i])
}

func (r *Relighter) collect(v *volume.LightVolume) Touched {
	var touched Touched
	for k, idx := range r.dirty {
		i := int(idx)
		r.seen[i] = false
		if v.Light[i] == r.original[k] {
			continue
		}
		x, _, z := volume.LightCoords(i)
		touched.mark(x, z)
	}
	r.dirty = r.dirty[:0]
	r.original = r.original[:0]
	return touched
}
