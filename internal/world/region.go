package world

import "github.com/go-gl/mathgl/mgl32"

const (
	// ChunkSizeX and ChunkSizeZ are the horizontal extent of a chunk in voxels.
	ChunkSizeX = 16
	ChunkSizeZ = 16
	// ChunkHeight is the vertical extent of every chunk; there is no vertical chunking.
	ChunkHeight = 256
	// VoxelsPerChunk is the length of each per-chunk array.
	VoxelsPerChunk = ChunkSizeX * ChunkSizeZ * ChunkHeight

	// FloorHeight is the highest voxel row forced solid by terrain generation.
	FloorHeight = 2
	// CeilingHeight is the lowest voxel row forced to air by terrain generation.
	CeilingHeight = 254
)

// ChunkCoord identifies a chunk column in chunk space.
type ChunkCoord struct {
	X int
	Z int
}

// Add offsets the coordinate by the provided chunk deltas.
func (c ChunkCoord) Add(dx, dz int) ChunkCoord {
	return ChunkCoord{X: c.X + dx, Z: c.Z + dz}
}

// Distance returns the Chebyshev distance between two chunk coordinates, which
// matches the square rings used for load ordering.
func (c ChunkCoord) Distance(other ChunkCoord) int {
	dx := absInt(c.X - other.X)
	dz := absInt(c.Z - other.Z)
	if dx > dz {
		return dx
	}
	return dz
}

// Origin returns the world-space voxel coordinate of the chunk's (0,0,0) corner.
func (c ChunkCoord) Origin() VoxelCoord {
	return VoxelCoord{X: c.X * ChunkSizeX, Y: 0, Z: c.Z * ChunkSizeZ}
}

// VoxelCoord describes a voxel position in world voxel space.
type VoxelCoord struct {
	X int
	Y int
	Z int
}

// Add offsets the voxel coordinate.
func (v VoxelCoord) Add(dx, dy, dz int) VoxelCoord {
	return VoxelCoord{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz}
}

// Vec returns the voxel's lattice point as a float vector.
func (v VoxelCoord) Vec() mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Chunk returns the chunk containing the voxel.
func (v VoxelCoord) Chunk() ChunkCoord {
	return ChunkCoord{
		X: floorDiv(v.X, ChunkSizeX),
		Z: floorDiv(v.Z, ChunkSizeZ),
	}
}

// Local returns the voxel's coordinates inside its chunk.
func (v VoxelCoord) Local() (x, y, z int) {
	return floorMod(v.X, ChunkSizeX), v.Y, floorMod(v.Z, ChunkSizeZ)
}

// InHeight reports whether the voxel lies inside the vertical chunk range.
func (v VoxelCoord) InHeight() bool {
	return v.Y >= 0 && v.Y < ChunkHeight
}

// ChunkAt converts a continuous world position into the chunk that contains it.
func ChunkAt(pos mgl32.Vec3) ChunkCoord {
	return ChunkCoord{
		X: floorDiv(int(floor32(pos.X())), ChunkSizeX),
		Z: floorDiv(int(floor32(pos.Z())), ChunkSizeZ),
	}
}

// VoxelAt rounds a continuous world position to the nearest voxel lattice point.
func VoxelAt(pos mgl32.Vec3) VoxelCoord {
	return VoxelCoord{
		X: int(floor32(pos.X() + 0.5)),
		Y: int(floor32(pos.Y() + 0.5)),
		Z: int(floor32(pos.Z() + 0.5)),
	}
}

// Index flattens chunk-local coordinates into an array index.
func Index(x, y, z int) int {
	return y<<8 | z<<4 | x
}

// Coords expands an array index back into chunk-local coordinates.
func Coords(index int) (x, y, z int) {
	return index & 0xF, index >> 8, (index >> 4) & 0xF
}

func floorDiv(value, size int) int {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}

func floorMod(value, size int) int {
	return value - floorDiv(value, size)*size
}

func floor32(v float32) float32 {
	i := float32(int(v))
	if v < i {
		return i - 1
	}
	return i
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
