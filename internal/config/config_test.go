package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "non positive view radius",
			mutate: func(cfg *Config) {
				cfg.World.ViewRadius = 0
			},
			wantErr: "world.viewRadius must be positive",
		},
		{
			name: "base height above ceiling",
			mutate: func(cfg *Config) {
				cfg.Terrain.BaseHeight = 254
			},
			wantErr: "terrain.baseHeight must be within (0, 254)",
		},
		{
			name: "zero frequency",
			mutate: func(cfg *Config) {
				cfg.Terrain.Frequency = 0
			},
			wantErr: "terrain.frequency must be positive",
		},
		{
			name: "persistence out of range",
			mutate: func(cfg *Config) {
				cfg.Terrain.Persistence = 1
			},
			wantErr: "terrain.persistence must be within (0, 1)",
		},
		{
			name: "snow below sand",
			mutate: func(cfg *Config) {
				cfg.Terrain.SnowLevel = 10
			},
			wantErr: "terrain.snowLevel must be >= sandLevel",
		},
		{
			name: "caves without frequency",
			mutate: func(cfg *Config) {
				cfg.Terrain.CaveFrequency = 0
			},
			wantErr: "terrain.caveFrequency must be positive when caves are enabled",
		},
		{
			name: "negative terrain workers",
			mutate: func(cfg *Config) {
				cfg.Terrain.Workers = -1
			},
			wantErr: "terrain.workers cannot be negative",
		},
		{
			name: "too few pipeline workers",
			mutate: func(cfg *Config) {
				cfg.Pipeline.Workers = 4
			},
			wantErr: "pipeline.workers must be >= 5",
		},
		{
			name: "zero tick rate",
			mutate: func(cfg *Config) {
				cfg.Pipeline.TickRate = 0
			},
			wantErr: "pipeline.tickRate must be positive",
		},
		{
			name: "unknown log level",
			mutate: func(cfg *Config) {
				cfg.Logging.Level = "verbose"
			},
			wantErr: `logging.level "verbose" is not supported`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("unexpected error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("default configuration mismatch:\nwant: %#v\n got: %#v", want, cfg)
	}
}

func TestLoadReadsJSONFileAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.World.Seed = 42
	cfg.Pipeline.TickRate = Duration(20 * time.Millisecond)

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("loaded configuration mismatch:\nwant: %#v\n got: %#v", cfg, got)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := strings.Join([]string{
		"world:",
		"  viewRadius: 2",
		"  seed: 7",
		"pipeline:",
		"  tickRate: 40ms",
		"  workers: 6",
		"logging:",
		"  level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got.World.ViewRadius != 2 || got.World.Seed != 7 {
		t.Fatalf("unexpected world section %+v", got.World)
	}
	if got.Pipeline.TickRate.Duration() != 40*time.Millisecond || got.Pipeline.Workers != 6 {
		t.Fatalf("unexpected pipeline section %+v", got.Pipeline)
	}
	if got.Terrain != Default().Terrain {
		t.Fatalf("expected terrain defaults to survive a partial file")
	}
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	in := struct {
		D Duration `yaml:"d"`
	}{D: Duration(1500 * time.Millisecond)}
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "1.5s") {
		t.Fatalf("expected string form in %q", data)
	}

	var out struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 2000000"), &out); err != nil {
		t.Fatalf("unmarshal numeric: %v", err)
	}
	if out.D.Duration() != 2*time.Millisecond {
		t.Fatalf("expected 2ms, got %s", out.D.Duration())
	}
}

func TestLoadInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.World.ViewRadius = 0

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err = Load(path)
	if err == nil {
		t.Fatalf("expected load to fail")
	}
	if !strings.Contains(err.Error(), "validate config: world.viewRadius must be positive") {
		t.Fatalf("unexpected error: %v", err)
	}
}
