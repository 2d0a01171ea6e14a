package terrain

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voxelterrain/internal/config"
	"voxelterrain/internal/logging"
	"voxelterrain/internal/world"
)

// warpScales are the three domain-warp frequencies blended into the height
// field, with warpWeights as their contribution.
var (
	warpScales  = [3]float64{1, 2.5, 6}
	warpWeights = [3]float64{0.6, 0.3, 0.1}
)

const (
	perlinAlpha  = 2
	perlinBeta   = 2
	perlinOctave = 3

	gravelFrequency = 0.09
	gravelThreshold = 0.38
	caveFloor       = world.FloorHeight + 2
	caveRoof        = 4 // rows kept solid under the surface
)

// Generator creates repeatable terrain: a domain-warped simplex height field,
// Perlin caves and gravel pockets. It is safe for concurrent use.
type Generator struct {
	cfg     config.TerrainConfig
	seed    int64
	logger  *zap.Logger
	workers int

	warpX  opensimplex.Noise
	warpZ  opensimplex.Noise
	height opensimplex.Noise

	caveA  *perlin.Perlin
	caveB  *perlin.Perlin
	gravel *perlin.Perlin
}

func NewGenerator(cfg config.TerrainConfig, seed int64, logger *zap.Logger) *Generator {
	return &Generator{
		cfg:     cfg,
		seed:    seed,
		logger:  logging.OrNop(logger),
		workers: workerCount(cfg.Workers),
		warpX:   opensimplex.New(seed),
		warpZ:   opensimplex.New(seed + 101),
		height:  opensimplex.New(seed + 202),
		caveA:   perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctave, seed+300),
		caveB:   perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctave, seed+400),
		gravel:  perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctave, seed+500),
	}
}

// Height returns the analytic surface height at a world column.
func (g *Generator) Height(wx, wz float64) float64 {
	px := wx * g.cfg.Frequency
	pz := wz * g.cfg.Frequency

	sum := 0.0
	for i, scale := range warpScales {
		sum += warpWeights[i] * g.warped(px*scale, pz*scale)
	}
	return clampFloat(g.cfg.BaseHeight+sum*g.cfg.Amplitude, MinHeight, MaxHeight)
}

// warped samples the height noise at a point displaced twice by the warp
// noise pair.
func (g *Generator) warped(x, z float64) float64 {
	k := g.cfg.WarpStrength

	qx := g.fbm(g.warpX, x, z)
	qz := g.fbm(g.warpZ, x+5.2, z+1.3)

	rx := g.fbm(g.warpX, x+k*qx+1.7, z+k*qz+9.2)
	rz := g.fbm(g.warpZ, x+k*qx+8.3, z+k*qz+2.8)

	return g.fbm(g.height, x+k*rx, z+k*rz)
}

func (g *Generator) fbm(n opensimplex.Noise, x, z float64) float64 {
	amplitude := 1.0
	frequency := 1.0
	sum := 0.0
	total := 0.0
	for i := 0; i < g.cfg.Octaves; i++ {
		sum += n.Eval2(x*frequency, z*frequency) * amplitude
		total += amplitude
		amplitude *= g.cfg.Persistence
		frequency *= g.cfg.Lacunarity
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// SurfaceMaterial picks the top voxel material from the analytic height.
func (g *Generator) SurfaceMaterial(height float64) world.Material {
	switch {
	case height < g.cfg.SandLevel:
		return world.MaterialSand
	case g.cfg.SnowLevel > 0 && height >= g.cfg.SnowLevel:
		return world.MaterialSnow
	default:
		return world.MaterialGrass
	}
}

// Generate fills chunk, which must be freshly reset for its key, with density
// and material. Columns are spread over a fixed number of workers; each column
// is a pure function of its world position so the output does not depend on
// scheduling.
func (g *Generator) Generate(ctx context.Context, chunk *world.Chunk) error {
	if chunk == nil {
		return fmt.Errorf("generate: chunk is nil")
	}
	start := time.Now()
	origin := chunk.Key.Origin()
	columns := world.ChunkSizeX * world.ChunkSizeZ

	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < g.workers; w++ {
		first := w
		eg.Go(func() error {
			for col := first; col < columns; col += g.workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				x := col % world.ChunkSizeX
				z := col / world.ChunkSizeX
				g.fillColumn(chunk, x, z, origin.X+x, origin.Z+z)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("generate chunk %v: %w", chunk.Key, err)
	}

	chunk.Set(world.FlagDensities)
	chunk.Touch()
	g.logger.Debug("chunk terrain generated",
		zap.Int("chunkX", chunk.Key.X),
		zap.Int("chunkZ", chunk.Key.Z),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (g *Generator) fillColumn(chunk *world.Chunk, x, z, wx, wz int) {
	height := g.Height(float64(wx), float64(wz))
	SetColumn(chunk, x, z, height, g.SurfaceMaterial(height), g.cfg.DirtDepth)

	top := SurfaceRow(height)
	for y := caveFloor; y < top-g.cfg.DirtDepth; y++ {
		idx := world.Index(x, y, z)
		if chunk.Material[idx] != world.MaterialStone {
			continue
		}
		if g.gravelAt(wx, y, wz) {
			chunk.Material[idx] = world.MaterialGravel
		}
	}

	if !g.cfg.Caves {
		return
	}
	for y := caveFloor; y < top-caveRoof; y++ {
		if g.caveAt(wx, y, wz) {
			idx := world.Index(x, y, z)
			chunk.Density[idx] = world.DensityAir
			chunk.Material[idx] = world.MaterialAir
		}
	}
}

func (g *Generator) caveAt(wx, y, wz int) bool {
	f := g.cfg.CaveFrequency
	bx, by, bz := float64(wx)*f+0.31, float64(y)*f*1.4+0.17, float64(wz)*f+0.53
	n1 := g.caveA.Noise3D(bx, by, bz)
	n2 := g.caveB.Noise3D(bx*0.66, by*0.66, bz*0.66)
	return (n1+n2)/2 > g.cfg.CaveThreshold
}

func (g *Generator) gravelAt(wx, y, wz int) bool {
	return g.gravel.Noise3D(float64(wx)*gravelFrequency+0.5, float64(y)*gravelFrequency+0.25, float64(wz)*gravelFrequency+0.75) > gravelThreshold
}

func workerCount(configured int) int {
	columns := world.ChunkSizeX * world.ChunkSizeZ
	if configured > 0 {
		if configured < columns {
			return configured
		}
		return columns
	}
	workers := runtime.GOMAXPROCS(0)
	if workers <= 0 {
		workers = 1
	}
	return workers
}
