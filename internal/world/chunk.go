package world

// Flags records the monotone completion state of a chunk.
type Flags uint8

const (
	// FlagDensities is set once terrain generation has filled density and material.
	FlagDensities Flags = 1 << iota
	// FlagLights is set once the sunlight flood-fill has been persisted.
	FlagLights
	// FlagMeshes is set once the renderer mesh reflects the current voxels.
	FlagMeshes
	// FlagColliders is set once all collision layers have been built.
	FlagColliders
)

const (
	// MaxLight is the brightest value either light channel can hold.
	MaxLight = 15

	// DensitySolid and DensityAir are the fully solid and fully empty densities.
	DensitySolid int8 = -128
	DensityAir   int8 = 127
)

// Chunk stores the voxel arrays for one 16x16x256 column. It is owned by a
// single writer; concurrent readers must work on copies.
type Chunk struct {
	Key      ChunkCoord
	Density  []int8
	Material []uint8
	Light    []uint8

	flags    Flags
	revision uint64
}

// NewChunk allocates an empty (all air, unlit) chunk.
func NewChunk(key ChunkCoord) *Chunk {
	c := &Chunk{
		Key:      key,
		Density:  make([]int8, VoxelsPerChunk),
		Material: make([]uint8, VoxelsPerChunk),
		Light:    make([]uint8, VoxelsPerChunk),
	}
	c.Reset(key)
	return c
}

// Reset clears the chunk so its buffers can be reused for another coordinate.
func (c *Chunk) Reset(key ChunkCoord) {
	c.Key = key
	for i := range c.Density {
		c.Density[i] = DensityAir
	}
	clear(c.Material)
	clear(c.Light)
	c.flags = 0
	c.revision = 0
}

// Has reports whether all the provided flags are set.
func (c *Chunk) Has(f Flags) bool {
	return c.flags&f == f
}

// Set marks the provided flags complete.
func (c *Chunk) Set(f Flags) {
	c.flags |= f
}

// Clear drops the provided flags; used when a remesh is required but cannot run yet.
func (c *Chunk) Clear(f Flags) {
	c.flags &^= f
}

// Revision increments every time density or light data is written.
func (c *Chunk) Revision() uint64 {
	return c.revision
}

// Touch bumps the revision after an external write to the arrays.
func (c *Chunk) Touch() {
	c.revision++
}

// Solid reports whether the voxel at index is solid.
func (c *Chunk) Solid(index int) bool {
	return c.Density[index] < 0
}

// SetVoxel writes density and material for one voxel.
func (c *Chunk) SetVoxel(index int, density int8, material uint8) {
	c.Density[index] = density
	c.Material[index] = material
	c.revision++
}

// CopyLight replaces the light array and marks the chunk lit.
func (c *Chunk) CopyLight(light []uint8) {
	copy(c.Light, light)
	c.revision++
	c.flags |= FlagLights
}

// SunLight returns the sun channel of a packed light byte.
func SunLight(light uint8) uint8 {
	return light >> 4
}

// SourceLight returns the block-light channel of a packed light byte.
func SourceLight(light uint8) uint8 {
	return light & 0xF
}

// PackLight combines the two channels into one byte.
func PackLight(sun, source uint8) uint8 {
	if sun > MaxLight || source > MaxLight {
		panic("light level out of range")
	}
	return sun<<4 | source
}

// WithSun replaces the sun channel of a packed light byte.
func WithSun(light, sun uint8) uint8 {
	return light&0x0F | sun<<4
}

// WithSource replaces the block-light channel of a packed light byte.
func WithSource(light, source uint8) uint8 {
	return light&0xF0 | source&0x0F
}
