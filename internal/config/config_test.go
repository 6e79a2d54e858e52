package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Project = "test-project"
	cfg.Deployments = []Deployment{
		{ID: "web", File: "compose.yaml", Env: []string{"PORT=8080"}},
		{ID: "legacy", Container: "legacy-db"},
	}

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Project != "test-project" {
		t.Errorf("Project = %q, want %q", loaded.Project, "test-project")
	}
	if len(loaded.Deployments) != 2 {
		t.Fatalf("Deployments = %v, want 2", loaded.Deployments)
	}
	web, ok := loaded.Find("web")
	if !ok {
		t.Fatal("deployment 'web' not found")
	}
	if web.File != "compose.yaml" {
		t.Errorf("File = %q, want %q", web.File, "compose.yaml")
	}
	if got := web.EnvMap()["PORT"]; got != "8080" {
		t.Errorf("Env[PORT] = %q, want %q", got, "8080")
	}
	if loaded.Runtime.PollInterval() != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", loaded.Runtime.PollInterval())
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, Dir), 0o755)
	os.WriteFile(Path(dir), []byte("project: bare\n"), 0o644)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime.OperationTimeout() != 600*time.Second {
		t.Errorf("OperationTimeout = %v, want 600s", cfg.Runtime.OperationTimeout())
	}
	if cfg.Runtime.HealthTimeout() != 120*time.Second {
		t.Errorf("HealthTimeout = %v, want 120s", cfg.Runtime.HealthTimeout())
	}
	if cfg.Engine != EngineCLI {
		t.Errorf("Engine = %q, want %q", cfg.Engine, EngineCLI)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.Enabled {
		t.Errorf("Logging = %+v, want enabled at info", cfg.Logging)
	}
	if cfg.Debug.Enabled {
		t.Error("Debug.Enabled should default to false")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("DRYDOCK_RUNTIME_POLL_INTERVAL_MS", "50")
	t.Setenv("DRYDOCK_ENGINE", "api")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime.PollIntervalMs != 50 {
		t.Errorf("PollIntervalMs = %d, want 50", cfg.Runtime.PollIntervalMs)
	}
	if cfg.Engine != EngineAPI {
		t.Errorf("Engine = %q, want %q", cfg.Engine, EngineAPI)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("Exists should be false before init")
	}

	cfg := &Config{Version: "1", Project: "test"}
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !Exists(dir) {
		t.Error("Exists should be true after save")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad engine", func(c *Config) { c.Engine = "podman" }, "engine"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"zero poll interval", func(c *Config) { c.Runtime.PollIntervalMs = 0 }, "runtime.poll_interval_ms"},
		{"missing id", func(c *Config) { c.Deployments = []Deployment{{File: "compose.yaml"}} }, "deployments[0].id"},
		{"two sources", func(c *Config) {
			c.Deployments = []Deployment{{ID: "a", File: "compose.yaml", Container: "x"}}
		}, "deployments[0]"},
		{"duplicate id", func(c *Config) {
			c.Deployments = []Deployment{{ID: "a", File: "a.yaml"}, {ID: "a", File: "b.yaml"}}
		}, "deployments[1].id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("Validate() = %v, want one error", errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		wantIDs []string
	}{
		{"compose.yaml", []string{"compose.yaml"}, []string{"default"}},
		{"legacy name", []string{"docker-compose.yml"}, []string{"default"}},
		{"test override", []string{"compose.yml", "docker-compose.test.yml"}, []string{"default", "test"}},
		{"shadowed", []string{"compose.yaml", "docker-compose.yml"}, []string{"default"}},
		{"no compose files", []string{"go.mod"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644)
			}
			d := Detect(dir)
			if len(d.Deployments) != len(tt.wantIDs) {
				t.Fatalf("Deployments = %v, want ids %v", d.Deployments, tt.wantIDs)
			}
			for i, id := range tt.wantIDs {
				if d.Deployments[i].ID != id {
					t.Errorf("Deployments[%d].ID = %q, want %q", i, d.Deployments[i].ID, id)
				}
			}
		})
	}
}
