package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voxelterrain/internal/config"
	"voxelterrain/internal/logging"
	"voxelterrain/internal/pipeline"
	"voxelterrain/internal/render"
	"voxelterrain/internal/world"
)

func main() {
	var (
		cfgPath    string
		ticks      int
		speed      float64
		editEvery  int
		previewDir string
	)
	flag.StringVar(&cfgPath, "config", "", "path to terrain configuration file")
	flag.IntVar(&ticks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	flag.Float64Var(&speed, "speed", 0.25, "viewer speed along +X in voxels per tick")
	flag.IntVar(&editEvery, "edit-every", 120, "ticks between scripted edits (0 disables)")
	flag.StringVar(&previewDir, "preview", "", "directory for a surface preview of the viewer's chunk on exit")
	flag.Parse()

	if _, err := writeConfigFromEnv(cfgPath); err != nil {
		log.Fatalf("sync config: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("initialise logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	s, err := pipeline.New(pipeline.Options{
		Config:     cfg,
		Factory:    render.NewHeadlessFactory(),
		Logger:     logger,
		Registerer: registry,
	})
	if err != nil {
		logger.Fatal("initialise scheduler", zap.Error(err))
	}

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen, registry, logger)
		defer srv.Close()
	}

	sim := &simulation{
		s:         s,
		logger:    logger.Named("sim"),
		speed:     float32(speed),
		editEvery: editEvery,
		position:  mgl32.Vec3{8, float32(s.Generator().Height(8, 8)) + 32, 8},
	}
	runErr := sim.run(ctx, cfg.Pipeline.TickRate.Duration(), ticks)

	if previewDir != "" {
		if chunk := s.Chunk(world.ChunkAt(sim.position)); chunk != nil {
			path, err := world.SavePreview(chunk, previewDir)
			if err != nil {
				logger.Error("save preview", zap.Error(err))
			} else {
				logger.Info("preview written", zap.String("path", path))
			}
		}
	}
	s.Shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Fatal("simulation exited with error", zap.Error(runErr))
	}
}

// simulation walks a viewer across the world and periodically digs or builds
// under it.
type simulation struct {
	s         *pipeline.Scheduler
	logger    *zap.Logger
	speed     float32
	editEvery int
	position  mgl32.Vec3
	ticks     int
	dig       bool
}

func (sim *simulation) run(ctx context.Context, rate time.Duration, limit int) error {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for limit <= 0 || sim.ticks < limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := sim.step(); err != nil {
			return err
		}
	}

	stats := sim.s.Stats()
	sim.logger.Info("simulation finished",
		zap.Int("ticks", sim.ticks),
		zap.Int("chunks", stats.Chunks),
		zap.Int("objects", stats.Objects),
		zap.Int("active", stats.ActiveObjects))
	return nil
}

func (sim *simulation) step() error {
	sim.ticks++
	sim.position = sim.position.Add(mgl32.Vec3{sim.speed, 0, 0})
	if err := sim.s.Tick(sim.position); err != nil {
		return err
	}
	if sim.editEvery > 0 && sim.ticks%sim.editEvery == 0 {
		sim.edit()
	}
	return nil
}

// edit alternates between digging into the surface below the viewer and
// building a block on top of it.
func (sim *simulation) edit() {
	coord := world.ChunkAt(sim.position)
	chunk := sim.s.Chunk(coord)
	if chunk == nil {
		return
	}
	voxel := world.VoxelAt(sim.position)
	x, _, z := voxel.Local()
	top := world.SurfaceHeight(chunk, x, z)
	if top < 0 {
		return
	}

	target := mgl32.Vec3{sim.position.X(), float32(top), sim.position.Z()}
	var err error
	if sim.dig {
		_, err = sim.s.Edits().Erase(target)
	} else {
		_, err = sim.s.Edits().Draw(target.Add(mgl32.Vec3{0, 1, 0}), world.DensitySolid, world.MaterialStone)
	}
	switch {
	case err == nil:
		sim.dig = !sim.dig
	case errors.Is(err, pipeline.ErrEditInFlight):
	default:
		sim.logger.Debug("scripted edit skipped", zap.Error(err))
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint stopped", zap.Error(err))
		}
	}()
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	return srv
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Ensure the process terminates if shutdown stalls.
		time.AfterFunc(10*time.Second, func() {
			log.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
