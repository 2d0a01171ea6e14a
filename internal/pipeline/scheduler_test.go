package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"voxelterrain/internal/config"
	"voxelterrain/internal/render"
	"voxelterrain/internal/volume"
	"voxelterrain/internal/world"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.World.ViewRadius = 1
	cfg.Terrain.Caves = false
	cfg.Terrain.Workers = 4
	return cfg
}

type harness struct {
	s        *Scheduler
	factory  *render.HeadlessFactory
	registry *prometheus.Registry
}

func newHarness(t *testing.T, observer Observer) *harness {
	t.Helper()
	h := &harness{
		factory:  render.NewHeadlessFactory(),
		registry: prometheus.NewRegistry(),
	}
	s, err := New(Options{
		Config:     testConfig(),
		Factory:    h.factory,
		Registerer: h.registry,
		Observer:   observer,
	})
	require.NoError(t, err)
	h.s = s
	t.Cleanup(s.Shutdown)
	return h
}

func chunkCenter(c world.ChunkCoord) mgl32.Vec3 {
	o := c.Origin()
	return mgl32.Vec3{float32(o.X) + 8, 160, float32(o.Z) + 8}
}

// tickUntil ticks the scheduler for a viewer at pos until done holds.
func (h *harness) tickUntil(t *testing.T, pos mgl32.Vec3, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Minute)
	for {
		require.NoError(t, h.s.Tick(pos))
		if done() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline did not settle: %+v", h.s.Stats())
		}
		time.Sleep(time.Millisecond)
	}
}

// settled reports whether every chunk in the interest radius is shown and no
// work is left.
func (h *harness) settled() bool {
	st := h.s.Stats()
	if len(st.InFlight) > 0 || st.EditBlocked || st.TerrainQueue+st.LightQueue+st.MeshQueue > 0 {
		return false
	}
	for _, c := range Spiral(h.s.Center(), h.s.radius) {
		obj := h.s.Object(c)
		if obj == nil || !obj.IsActive() {
			return false
		}
	}
	return true
}

func (h *harness) counter(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := h.registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == label && l.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSchedulerGatesStagesOnNeighbours(t *testing.T) {
	var h *harness
	starts := map[Kind]int{}
	h = newHarness(t, func(kind Kind, coord world.ChunkCoord) {
		starts[kind]++
		switch kind {
		case KindTerrain:
			require.Nil(t, h.s.Chunk(coord), "terrain regenerated for %v", coord)
		case KindSunlight:
			n, ok := volume.Gather(coord, h.s.lookup)
			require.True(t, ok, "light started for %v without all neighbours", coord)
			require.False(t, n.Center().Has(world.FlagLights))
		case KindMesh:
			n, ok := volume.Gather(coord, h.s.lookup)
			require.True(t, ok)
			for _, c := range n {
				require.True(t, c.Has(world.FlagLights), "mesh started for %v before %v was lit", coord, c.Key)
			}
		}
		require.False(t, h.s.slots[kind].busy(), "%s started twice", kind)
	})

	h.tickUntil(t, chunkCenter(world.ChunkCoord{}), h.settled)

	st := h.s.Stats()
	require.Equal(t, 49, st.Chunks, "terrain is kept two rings beyond the radius")
	require.Equal(t, 9, st.Objects)
	require.Equal(t, 9, st.ActiveObjects)
	require.Equal(t, 49, starts[KindTerrain])
	require.Equal(t, 25, starts[KindSunlight])
	require.Equal(t, 9, starts[KindMesh])
	require.Zero(t, starts[KindRelight])

	for _, c := range Spiral(world.ChunkCoord{}, 3) {
		chunk := h.s.Chunk(c)
		require.NotNil(t, chunk)
		require.True(t, chunk.Has(world.FlagDensities))
		require.Equal(t, c.Distance(world.ChunkCoord{}) <= 2, chunk.Has(world.FlagLights), "chunk %v", c)
		require.Equal(t, c.Distance(world.ChunkCoord{}) <= 1, chunk.Has(world.FlagMeshes|world.FlagColliders), "chunk %v", c)
	}

	rec, ok := h.factory.Object(world.ChunkCoord{})
	require.True(t, ok)
	snap := rec.Snapshot()
	require.Positive(t, snap.Triangles)
	require.Equal(t, 1, snap.Uploads)

	require.Equal(t, float64(9), h.counter(t, "voxelterrain_tasks_completed_total", "kind", "mesh"))
}

func TestSchedulerFollowsViewer(t *testing.T) {
	h := newHarness(t, nil)
	h.tickUntil(t, chunkCenter(world.ChunkCoord{}), h.settled)

	// One chunk east: the west column leaves the radius but stays loaded.
	h.tickUntil(t, chunkCenter(world.ChunkCoord{X: 1}), h.settled)
	west := world.ChunkCoord{X: -1}
	require.NotNil(t, h.s.Chunk(west))
	require.NotNil(t, h.s.Object(west))
	require.False(t, h.s.Object(west).IsActive())
	require.Nil(t, h.s.Chunk(world.ChunkCoord{X: -3}), "chunks beyond the keep range are freed")

	// Far east: everything near the origin is destroyed.
	h.tickUntil(t, chunkCenter(world.ChunkCoord{X: 5}), h.settled)
	require.Nil(t, h.s.Chunk(world.ChunkCoord{}))
	require.Nil(t, h.s.Object(world.ChunkCoord{}))
	rec, ok := h.factory.Object(world.ChunkCoord{})
	require.True(t, ok)
	require.True(t, rec.Snapshot().Destroyed)

	// Returning rebuilds the origin with a fresh object from pooled buffers.
	h.tickUntil(t, chunkCenter(world.ChunkCoord{}), h.settled)
	rec, _ = h.factory.Object(world.ChunkCoord{})
	require.False(t, rec.Snapshot().Destroyed)
	_, reused := h.s.chunkPool.Stats()
	require.Positive(t, reused)
}

func TestSubmitRejectsBusySlot(t *testing.T) {
	h := newHarness(t, nil)
	release := make(chan struct{})
	h.s.submit(KindMesh, world.ChunkCoord{}, func() { <-release })

	require.Panics(t, func() { h.s.submit(KindMesh, world.ChunkCoord{X: 1}, func() {}) })
	require.Panics(t, func() { h.s.releaseBuffers() })
	require.Equal(t, []Kind{KindMesh}, h.s.Stats().InFlight)

	close(release)
}

func TestShutdownClosesScheduler(t *testing.T) {
	h := newHarness(t, nil)
	h.tickUntil(t, chunkCenter(world.ChunkCoord{}), h.settled)

	h.s.Shutdown()
	require.ErrorIs(t, h.s.Tick(mgl32.Vec3{}), ErrClosed)
	_, err := h.s.Edits().Erase(chunkCenter(world.ChunkCoord{}))
	require.ErrorIs(t, err, ErrClosed)

	rec, ok := h.factory.Object(world.ChunkCoord{})
	require.True(t, ok)
	require.True(t, rec.Snapshot().Destroyed)
	require.Zero(t, h.s.Stats().Chunks)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Factory: render.NewHeadlessFactory()})
	require.Error(t, err)

	_, err = New(Options{Config: testConfig()})
	require.Error(t, err)

	cfg := testConfig()
	cfg.Pipeline.Workers = 2
	_, err = New(Options{Config: cfg, Factory: render.NewHeadlessFactory()})
	require.ErrorContains(t, err, "pipeline.workers")
}

func TestKindNames(t *testing.T) {
	require.Equal(t, "edit_mesh", KindEditMesh.String())
	require.Equal(t, "kind(9)", Kind(9).String())
}

func TestRunStopsWithContext(t *testing.T) {
	submitted := 0
	h := newHarness(t, func(Kind, world.ChunkCoord) { submitted++ })
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	viewer := ViewerFunc(func() mgl32.Vec3 { return chunkCenter(world.ChunkCoord{}) })
	require.ErrorIs(t, h.s.Run(ctx, viewer), context.DeadlineExceeded)
	require.Positive(t, submitted)
	require.Equal(t, world.ChunkCoord{}, h.s.Center())
}
