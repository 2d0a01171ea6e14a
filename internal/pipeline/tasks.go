package pipeline

import (
	"fmt"
	"time"

	"github.com/alitto/pond/v2"

	"voxelterrain/internal/lighting"
	"voxelterrain/internal/mesh"
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

// Kind names one of the fixed task slots. Each kind has at most one task in
// flight.
type Kind int

const (
	KindTerrain Kind = iota
	KindSunlight
	KindRelight
	KindMesh
	KindEditMesh
	kindCount
)

var kindNames = [kindCount]string{"terrain", "sunlight", "relight", "mesh", "edit_mesh"}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// slot holds the in-flight task of one kind.
type slot struct {
	kind  Kind
	task  pond.Task
	coord world.ChunkCoord
	start time.Time
}

func (s *slot) busy() bool {
	return s.task != nil
}

// finished reports, without blocking, whether the running task has returned.
func (s *slot) finished() bool {
	if s.task == nil {
		return false
	}
	select {
	case <-s.task.Done():
		return true
	default:
		return false
	}
}

// The job structs below are the per-slot arenas. Inputs are copied into them
// on the tick goroutine before submit and results are read back only after
// the slot reports completion, so a task never sees a live chunk.

type terrainJob struct {
	chunk *world.Chunk
	err   error
}

type sunlightJob struct {
	volume    *volume.LightVolume
	fill      *lighting.FloodFill
	light     []uint8
	revisions [9]uint64
}

func newSunlightJob() *sunlightJob {
	return &sunlightJob{
		volume: volume.NewLightVolume(),
		fill:   lighting.NewFloodFill(),
		light:  make([]uint8, world.VoxelsPerChunk),
	}
}

func (j *sunlightJob) run() {
	j.fill.Run(j.volume)
	j.volume.Store(0, 0, j.light)
}

type meshJob struct {
	volume    *volume.MeshVolume
	extractor *mesh.Extractor
	data      mesh.Data
	revisions [9]uint64
}

func newMeshJob() *meshJob {
	return &meshJob{
		volume:    volume.NewMeshVolume(),
		extractor: mesh.NewExtractor(),
	}
}

func (j *meshJob) run() {
	j.extractor.Extract(j.volume, &j.data)
}

type relightJob struct {
	volume    *volume.LightVolume
	relighter *lighting.Relighter
	seeds     []lighting.Seed
	touched   lighting.Touched
	light     []uint8
	revisions [9]uint64
}

func newRelightJob() *relightJob {
	return &relightJob{
		volume:    volume.NewLightVolume(),
		relighter: lighting.NewRelighter(),
		light:     make([]uint8, world.VoxelsPerChunk),
	}
}

func (j *relightJob) run() {
	j.touched = j.relighter.Relight(j.volume, j.seeds)
}

// editMeshJob remeshes every chunk an edit reaches in one task. meshes grows
// to at most nine entries and is reused across edits.
type editMeshJob struct {
	targets []world.ChunkCoord
	meshes  []*meshJob
}

func (j *editMeshJob) reset() {
	j.targets = j.targets[:0]
}

// add reserves the next mesh arena for coord.
func (j *editMeshJob) add(coord world.ChunkCoord) *meshJob {
	i := len(j.targets)
	if i == len(j.meshes) {
		j.meshes = append(j.meshes, newMeshJob())
	}
	j.targets = append(j.targets, coord)
	return j.meshes[i]
}

func (j *editMeshJob) run() {
	for i := range j.targets {
		j.meshes[i].run()
	}
}
