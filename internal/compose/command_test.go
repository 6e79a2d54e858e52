package compose

import (
	"slices"
	"strings"
	"testing"
)

func TestCLIBuilderCompose(t *testing.T) {
	b := NewCLIBuilder("docker compose")
	d := FromYAML("shop", map[string]any{"services": map[string]any{}}, "/srv/shop")
	d.SetEnv("TAG", "v2")
	base := "docker compose -f /tmp/r/docker-compose.yml -p shop --project-directory /srv/shop"

	tests := []struct {
		name string
		verb Verb
		opts Options
		want string
	}{
		{"start", VerbStart, ForStart("", false, DefaultHealthTimeout, nil), base + " up -d"},
		{"start rebuild member", VerbStart, ForStart("web", true, DefaultHealthTimeout, nil), base + " up -d --build web"},
		{"start with flags", VerbStart, ForStart("", false, DefaultHealthTimeout, map[string]any{"flags": []any{"--profile dev"}}), base + " --profile dev up -d"},
		{"stop", VerbStop, ForStop("", false, "", nil), base + " stop"},
		{"stop member", VerbStop, ForStop("web", false, "", nil), base + " stop web"},
		{"remove", VerbRemove, ForStop("", false, "", nil), base + " down"},
		{"remove everything", VerbRemove, ForStop("", true, "all", nil), base + " down --volumes --rmi all"},
		{"restart", VerbRestart, ForRestart("", false, false, "", DefaultHealthTimeout, nil), base + " restart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := b.Build(tt.verb, d, tt.opts, "/tmp/r/docker-compose.yml")
			if cmd.Invocation != tt.want {
				t.Errorf("Invocation = %q, want %q", cmd.Invocation, tt.want)
			}
			if cmd.Dir != "/srv/shop" {
				t.Errorf("Dir = %q, want %q", cmd.Dir, "/srv/shop")
			}
			if cmd.Env["TAG"] != "v2" {
				t.Errorf("Env[TAG] = %q, want %q", cmd.Env["TAG"], "v2")
			}
		})
	}
}

func TestCLIBuilderQuotes(t *testing.T) {
	b := NewCLIBuilder("docker-compose")
	d := FromYAML("x", nil, "/home/me/my stack")

	cmd := b.Build(VerbStart, d, ForStart("web; rm -rf /", false, DefaultHealthTimeout, nil), "/tmp/a b/docker-compose.yml")
	for _, want := range []string{
		"docker-compose -f '/tmp/a b/docker-compose.yml'",
		"--project-directory '/home/me/my stack'",
		"'web; rm -rf /'",
	} {
		if !strings.Contains(cmd.Invocation, want) {
			t.Errorf("Invocation = %q, want it to contain %q", cmd.Invocation, want)
		}
	}
}

func TestCLIBuilderReadOnlyKinds(t *testing.T) {
	b := NewCLIBuilder("docker compose")

	container := FromContainer("db", "legacy-db", "/tmp")
	tests := []struct {
		verb Verb
		want string
	}{
		{VerbStart, "docker start legacy-db"},
		{VerbStop, "docker stop legacy-db"},
		{VerbRemove, "docker rm -f legacy-db"},
		{VerbRestart, "docker restart legacy-db"},
	}
	for _, tt := range tests {
		if got := b.Build(tt.verb, container, Options{}, "").Invocation; got != tt.want {
			t.Errorf("Build(%s) = %q, want %q", tt.verb, got, tt.want)
		}
	}

	project := FromProject("p", "legacy", "/tmp")
	got := b.Build(VerbRemove, project, ForStop("", true, "", nil), "").Invocation
	if want := "docker compose -p legacy down --volumes"; got != want {
		t.Errorf("Build(remove project) = %q, want %q", got, want)
	}
}

func TestCommandEnviron(t *testing.T) {
	cmd := Command{Env: map[string]string{"PATH": "/opt/bin", "TAG": "v2"}}
	env := cmd.Environ([]string{"PATH=/usr/bin", "HOME=/root"})

	slices.Sort(env)
	want := []string{"HOME=/root", "PATH=/opt/bin", "TAG=v2"}
	if !slices.Equal(env, want) {
		t.Errorf("Environ = %v, want %v", env, want)
	}
}
