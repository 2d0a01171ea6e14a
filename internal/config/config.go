package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a JSON and YAML friendly wrapper around time.Duration that
// accepts human readable strings such as "150ms" in configuration files while
// still allowing numeric representations when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar at line %d", node.Line)
	}
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	if node.Tag == "!!null" {
		*d = 0
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures the tunable parameters of the terrain engine.
type Config struct {
	World    WorldConfig    `json:"world" yaml:"world"`
	Terrain  TerrainConfig  `json:"terrain" yaml:"terrain"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

type WorldConfig struct {
	ViewRadius int   `json:"viewRadius" yaml:"viewRadius"` // interest radius in chunks
	Seed       int64 `json:"seed" yaml:"seed"`
}

type TerrainConfig struct {
	BaseHeight    float64 `json:"baseHeight" yaml:"baseHeight"`
	Amplitude     float64 `json:"amplitude" yaml:"amplitude"`
	Frequency     float64 `json:"frequency" yaml:"frequency"`
	Octaves       int     `json:"octaves" yaml:"octaves"`
	Persistence   float64 `json:"persistence" yaml:"persistence"`
	Lacunarity    float64 `json:"lacunarity" yaml:"lacunarity"`
	WarpStrength  float64 `json:"warpStrength" yaml:"warpStrength"`
	SandLevel     float64 `json:"sandLevel" yaml:"sandLevel"`
	SnowLevel     float64 `json:"snowLevel" yaml:"snowLevel"`
	DirtDepth     int     `json:"dirtDepth" yaml:"dirtDepth"`
	Caves         bool    `json:"caves" yaml:"caves"`
	CaveFrequency float64 `json:"caveFrequency" yaml:"caveFrequency"`
	CaveThreshold float64 `json:"caveThreshold" yaml:"caveThreshold"`
	Workers       int     `json:"workers" yaml:"workers"` // column fan-out, 0 = GOMAXPROCS
}

type PipelineConfig struct {
	TickRate   Duration `json:"tickRate" yaml:"tickRate"`     // e.g. "16ms"
	Workers    int      `json:"workers" yaml:"workers"`       // shared task pool size
	PoolChunks int      `json:"poolChunks" yaml:"poolChunks"` // idle chunk buffers kept for reuse
}

type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
	Encoding    string `json:"encoding" yaml:"encoding"`
}

type MetricsConfig struct {
	Listen    string `json:"listen" yaml:"listen"` // ":9102"; empty disables the endpoint
	Namespace string `json:"namespace" yaml:"namespace"`
}

// Load reads configuration from a JSON or YAML file if provided. An empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := Decode(data, filepath.Ext(path), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Decode unmarshals data into cfg, choosing YAML for .yaml/.yml and JSON otherwise.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func Default() *Config {
	return &Config{
		World: WorldConfig{
			ViewRadius: 4,
			Seed:       1337,
		},
		Terrain: TerrainConfig{
			BaseHeight:    96,
			Amplitude:     48,
			Frequency:     0.004,
			Octaves:       4,
			Persistence:   0.5,
			Lacunarity:    2.0,
			WarpStrength:  4.0,
			SandLevel:     84,
			SnowLevel:     150,
			DirtDepth:     3,
			Caves:         true,
			CaveFrequency: 0.045,
			CaveThreshold: 0.32,
			Workers:       0,
		},
		Pipeline: PipelineConfig{
			TickRate:   Duration(16 * time.Millisecond),
			Workers:    5,
			PoolChunks: 64,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Namespace: "voxelterrain",
		},
	}
}

func (c *Config) Validate() error {
	if c.World.ViewRadius <= 0 {
		return errors.New("world.viewRadius must be positive")
	}
	if c.Terrain.BaseHeight <= 0 || c.Terrain.BaseHeight >= 254 {
		return errors.New("terrain.baseHeight must be within (0, 254)")
	}
	if c.Terrain.Amplitude < 0 {
		return errors.New("terrain.amplitude cannot be negative")
	}
	if c.Terrain.Frequency <= 0 {
		return errors.New("terrain.frequency must be positive")
	}
	if c.Terrain.Octaves <= 0 {
		return errors.New("terrain.octaves must be positive")
	}
	if c.Terrain.Persistence <= 0 || c.Terrain.Persistence >= 1 {
		return errors.New("terrain.persistence must be within (0, 1)")
	}
	if c.Terrain.Lacunarity < 1 {
		return errors.New("terrain.lacunarity must be >= 1")
	}
	if c.Terrain.WarpStrength < 0 {
		return errors.New("terrain.warpStrength cannot be negative")
	}
	if c.Terrain.SnowLevel > 0 && c.Terrain.SnowLevel < c.Terrain.SandLevel {
		return errors.New("terrain.snowLevel must be >= sandLevel")
	}
	if c.Terrain.DirtDepth < 0 {
		return errors.New("terrain.dirtDepth cannot be negative")
	}
	if c.Terrain.Caves && c.Terrain.CaveFrequency <= 0 {
		return errors.New("terrain.caveFrequency must be positive when caves are enabled")
	}
	if c.Terrain.Workers < 0 {
		return errors.New("terrain.workers cannot be negative")
	}
	if c.Pipeline.TickRate <= 0 {
		return errors.New("pipeline.tickRate must be positive")
	}
	if c.Pipeline.Workers < 5 {
		return errors.New("pipeline.workers must be >= 5")
	}
	if c.Pipeline.PoolChunks < 0 {
		return errors.New("pipeline.poolChunks cannot be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.encoding %q is not supported", c.Logging.Encoding)
	}
	return nil
}
