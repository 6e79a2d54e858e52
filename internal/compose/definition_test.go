package compose

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/zpdzap/drydock/internal/parser"
	"github.com/zpdzap/drydock/internal/state"
)

func TestEnvOverrides(t *testing.T) {
	d := FromYAML("id", nil, t.TempDir())
	d.SetEnv("FOO", "BAR")
	d.SetEnvs(map[string]string{"BAR": "BAZ"})

	env := d.Env()
	if env["FOO"] != "BAR" {
		t.Errorf("FOO = %q, want %q", env["FOO"], "BAR")
	}
	if env["BAR"] != "BAZ" {
		t.Errorf("BAR = %q, want %q", env["BAR"], "BAZ")
	}
}

func TestDocumentManipulation(t *testing.T) {
	d := FromYAML("id", map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
	}, t.TempDir())

	d.SetValues(map[string]any{"services": map[string]any{"web": map[string]any{"environment": map[string]any{"A": "1"}}}})
	d.SetProjectName("project")
	d.SetContainerName("web", "web-1")
	d.SetPortMapping("web", 80, 8080, "")
	d.SetNetwork("custom")
	if err := d.RenameService("web", "frontend"); err != nil {
		t.Fatalf("RenameService: %v", err)
	}
	d.SetCPUs("frontend", 1.5)
	d.SetMemoryLimit("frontend", "512M")

	data := d.Data()
	if data["name"] != "project" {
		t.Errorf("name = %v, want %q", data["name"], "project")
	}
	svc := data["services"].(map[string]any)["frontend"].(map[string]any)
	if svc["image"] != "nginx" {
		t.Errorf("image = %v, want nginx (merge must keep existing keys)", svc["image"])
	}
	if svc["container_name"] != "web-1" {
		t.Errorf("container_name = %v, want %q", svc["container_name"], "web-1")
	}
	if ports := svc["ports"].([]any); ports[0] != "8080:80/tcp" {
		t.Errorf("ports[0] = %v, want %q", ports[0], "8080:80/tcp")
	}
	if _, ok := data["networks"].(map[string]any)["custom"]; !ok {
		t.Error("network 'custom' not declared")
	}
	if !reflect.DeepEqual(svc["networks"], []any{"custom"}) {
		t.Errorf("service networks = %v, want [custom]", svc["networks"])
	}
	limits := svc["deploy"].(map[string]any)["resources"].(map[string]any)["limits"].(map[string]any)
	if limits["cpus"] != 1.5 {
		t.Errorf("cpus = %v, want 1.5", limits["cpus"])
	}
	if limits["memory"] != "512M" {
		t.Errorf("memory = %v, want 512M", limits["memory"])
	}
	if env := svc["environment"].(map[string]any); env["A"] != "1" {
		t.Errorf("environment.A = %v, want 1", env["A"])
	}
}

func TestRenameServiceRewritesDependsOn(t *testing.T) {
	d := FromYAML("id", map[string]any{
		"services": map[string]any{
			"db":  map[string]any{"image": "postgres"},
			"api": map[string]any{"depends_on": []any{"db"}},
			"web": map[string]any{"depends_on": map[string]any{"db": map[string]any{"condition": "service_healthy"}}},
		},
	}, t.TempDir())

	if err := d.RenameService("db", "postgres"); err != nil {
		t.Fatalf("RenameService: %v", err)
	}
	services := d.Data()["services"].(map[string]any)
	if got := services["api"].(map[string]any)["depends_on"]; !reflect.DeepEqual(got, []any{"postgres"}) {
		t.Errorf("api depends_on = %v, want [postgres]", got)
	}
	if _, ok := services["web"].(map[string]any)["depends_on"].(map[string]any)["postgres"]; !ok {
		t.Error("web depends_on should reference postgres")
	}

	if err := d.RenameService("missing", "x"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("RenameService(missing) = %v, want ErrServiceNotFound", err)
	}
}

func TestDataIsCopied(t *testing.T) {
	src := map[string]any{"services": map[string]any{"web": map[string]any{"image": "nginx"}}}
	d := FromYAML("id", src, t.TempDir())

	src["services"].(map[string]any)["web"].(map[string]any)["image"] = "httpd"
	out := d.Data()
	out["services"].(map[string]any)["web"].(map[string]any)["image"] = "caddy"

	if got := d.Data()["services"].(map[string]any)["web"].(map[string]any)["image"]; got != "nginx" {
		t.Errorf("image = %v, want nginx", got)
	}
}

func TestFromFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "My App")
	os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, "compose.yaml")
	os.WriteFile(path, []byte("services:\n  web:\n    image: nginx\n    container_name: web\n"), 0o644)

	d, err := FromFile("app", path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if d.Kind() != KindFile || !d.Startable() {
		t.Errorf("Kind = %q, Startable = %v", d.Kind(), d.Startable())
	}
	if d.WorkDir() != dir {
		t.Errorf("WorkDir = %q, want %q", d.WorkDir(), dir)
	}
	if d.ProjectName() != "myapp" {
		t.Errorf("ProjectName = %q, want %q", d.ProjectName(), "myapp")
	}
	if !reflect.DeepEqual(d.Services(), []string{"web"}) {
		t.Errorf("Services = %v, want [web]", d.Services())
	}
	if !reflect.DeepEqual(d.ContainerNames(), []string{"web"}) {
		t.Errorf("ContainerNames = %v, want [web]", d.ContainerNames())
	}

	if _, err := FromFile("missing", filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("FromFile should fail for a missing file")
	}
}

func TestProjectName(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
		want string
	}{
		{"explicit name", FromYAML("x", map[string]any{"name": "Shop_API"}, "/tmp"), "shop_api"},
		{"yaml falls back to id", FromYAML("Billing Worker", nil, "/tmp"), "billingworker"},
		{"project kind", FromProject("p", "legacy-stack", "/tmp"), "legacy-stack"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.def.ProjectName(); got != tt.want {
				t.Errorf("ProjectName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadOnlyKinds(t *testing.T) {
	c := FromContainer("db", "legacy-db", "/tmp")
	if c.Startable() {
		t.Error("container definitions must not be startable")
	}
	if c.ContainerName() != "legacy-db" {
		t.Errorf("ContainerName = %q, want %q", c.ContainerName(), "legacy-db")
	}
	if !reflect.DeepEqual(c.ContainerNames(), []string{"legacy-db"}) {
		t.Errorf("ContainerNames = %v", c.ContainerNames())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for read-only kinds", err)
	}
	if FromProject("p", "x", "/tmp").Startable() {
		t.Error("project definitions must not be startable")
	}
}

func TestCallbacksAndState(t *testing.T) {
	d := FromYAML("id", nil, t.TempDir())
	if fn, _ := d.Progress(); fn != nil {
		t.Error("progress callback should be unset")
	}

	d.OnProgress(func(string, []parser.Event, Verb) {}, 500*time.Millisecond)
	d.OnSuccess(func(string, Verb) {})
	d.OnError(func(string, []string) {})

	fn, interval := d.Progress()
	if fn == nil || interval != 500*time.Millisecond {
		t.Errorf("Progress() = (%v, %v), want callback every 500ms", fn != nil, interval)
	}
	if d.SuccessCallback() == nil || d.ErrorCallback() == nil {
		t.Error("success and error callbacks should be set")
	}

	if _, ok := d.State(); ok {
		t.Error("State should be unset before the first inspection")
	}
	d.SetState(state.Running("id", map[string]string{"web": "healthy"}))
	s, ok := d.State()
	if !ok || !s.IsRunning() {
		t.Errorf("State() = %+v, %v", s, ok)
	}
}
