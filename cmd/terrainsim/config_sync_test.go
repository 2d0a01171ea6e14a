package main

import (
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"voxelterrain/internal/config"
)

func TestWriteConfigFromEnvJSON(t *testing.T) {
	t.Setenv("TERRAIN_CONFIG_YAML_B64", "")

	cfg := config.Default()
	cfg.World.Seed = 4242
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	t.Setenv("TERRAIN_CONFIG_JSON", string(data))

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	wrote, err := writeConfigFromEnv(path)
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if !wrote {
		t.Fatalf("expected config to be written")
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if loaded.World.Seed != 4242 {
		t.Fatalf("unexpected seed: %d", loaded.World.Seed)
	}
}

func TestWriteConfigFromEnvYAMLKeepsDefaults(t *testing.T) {
	t.Setenv("TERRAIN_CONFIG_JSON", "")
	payload := []byte("world:\n  viewRadius: 6\n")
	t.Setenv("TERRAIN_CONFIG_YAML_B64", base64.StdEncoding.EncodeToString(payload))

	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := writeConfigFromEnv(path); err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if loaded.World.ViewRadius != 6 {
		t.Fatalf("unexpected view radius: %d", loaded.World.ViewRadius)
	}
	if loaded.Pipeline.Workers != config.Default().Pipeline.Workers {
		t.Fatalf("defaults not preserved: workers = %d", loaded.Pipeline.Workers)
	}
}

func TestWriteConfigFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("TERRAIN_CONFIG_JSON", "")
	cfg := config.Default()
	cfg.Pipeline.Workers = 1
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	t.Setenv("TERRAIN_CONFIG_YAML_B64", base64.StdEncoding.EncodeToString(data))

	if _, err := writeConfigFromEnv(filepath.Join(t.TempDir(), "config.json")); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestWriteConfigFromEnvNoPayload(t *testing.T) {
	t.Setenv("TERRAIN_CONFIG_JSON", "")
	t.Setenv("TERRAIN_CONFIG_YAML_B64", "")

	wrote, err := writeConfigFromEnv("")
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if wrote {
		t.Fatalf("expected no config to be written")
	}
}
