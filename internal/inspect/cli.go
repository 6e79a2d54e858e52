package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/logging"
	"github.com/zpdzap/drydock/internal/state"
)

const projectLabel = "com.docker.compose.project"

// CLIInspector runs `ps --format json` through the docker CLI.
type CLIInspector struct {
	binary []string
	runner Runner
	log    *logging.Logger
}

// NewCLIInspector returns an inspector for the compose binary ("docker
// compose" or "docker-compose").
func NewCLIInspector(binary string, runner Runner, log *logging.Logger) *CLIInspector {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &CLIInspector{binary: strings.Fields(binary), runner: runner, log: log}
}

func (i *CLIInspector) Describe(ctx context.Context, defs []*compose.Definition) map[string]state.DeploymentState {
	out := make(map[string]state.DeploymentState, len(defs))
	for _, def := range defs {
		out[def.ID()] = i.describe(ctx, def)
	}
	return out
}

func (i *CLIInspector) describe(ctx context.Context, def *compose.Definition) state.DeploymentState {
	argv, dir, ok := i.psCommand(def)
	if !ok {
		return state.Unknown(def.ID())
	}
	raw, err := i.runner.Output(ctx, dir, argv[0], argv[1:]...)
	if err != nil {
		i.log.WithDeployment(def.ID()).Debug("status query failed", "error", err.Error())
		return state.Unknown(def.ID())
	}
	records, err := ParsePS(raw)
	if err != nil {
		i.log.WithDeployment(def.ID()).Debug("unparseable status output", "error", err.Error())
		return state.Unknown(def.ID())
	}
	return Summarize(def.ID(), records)
}

// psCommand returns the status query for def, or false when it has no
// locatable source.
func (i *CLIInspector) psCommand(def *compose.Definition) ([]string, string, bool) {
	ps := []string{"ps", "-a", "--format", "json"}

	switch def.Kind() {
	case compose.KindFile:
		src := def.SourceFile()
		if src == "" {
			return nil, "", false
		}
		if _, err := os.Stat(src); err != nil {
			return nil, "", false
		}
		argv := append(append([]string{}, i.binary...), "-f", src, "-p", def.ProjectName())
		return append(argv, ps...), def.WorkDir(), true
	case compose.KindYAML, compose.KindProject:
		project := def.ProjectName()
		if project == "" {
			return nil, "", false
		}
		// outside the work dir so a compose file there is not picked up
		argv := append(append([]string{}, i.binary...), "-p", project)
		return append(argv, ps...), os.TempDir(), true
	case compose.KindContainer:
		name := def.ContainerName()
		if name == "" {
			return nil, "", false
		}
		return []string{"docker", "ps", "-a", "--filter", "name=^/" + name + "$", "--format", "json"}, def.WorkDir(), true
	}
	return nil, "", false
}

type psRecord struct {
	Service string `json:"Service"`
	Name    string `json:"Name"`
	Names   string `json:"Names"`
	State   string `json:"State"`
	Health  string `json:"Health"`
	Status  string `json:"Status"`
}

// ParsePS decodes `ps --format json` output: newline-delimited objects, or a
// single array as older compose releases print. Lines that are not JSON
// objects are skipped.
func ParsePS(raw []byte) ([]Record, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}

	var rows []psRecord
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &rows); err != nil {
			return nil, fmt.Errorf("decoding ps array: %w", err)
		}
	} else {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var row psRecord
			if err := json.Unmarshal([]byte(line), &row); err != nil {
				continue
			}
			rows = append(rows, row)
		}
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		member := firstNonEmpty(row.Service, row.Name, row.Names)
		if member == "" {
			continue
		}
		health := row.Health
		if health == "" {
			health = HealthFromStatus(row.Status)
		}
		records = append(records, Record{Member: member, State: row.State, Health: health})
	}
	return records, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CLIResources lists project volumes and images through the docker CLI.
type CLIResources struct {
	runner Runner
}

func NewCLIResources(runner Runner) *CLIResources {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &CLIResources{runner: runner}
}

func (r *CLIResources) Volumes(ctx context.Context, def *compose.Definition) ([]string, error) {
	return r.list(ctx, "volume", def, "{{.Name}}")
}

func (r *CLIResources) Images(ctx context.Context, def *compose.Definition) ([]string, error) {
	return r.list(ctx, "image", def, "{{.Repository}}:{{.Tag}}")
}

func (r *CLIResources) list(ctx context.Context, object string, def *compose.Definition, format string) ([]string, error) {
	project := def.ProjectName()
	if project == "" {
		return nil, nil
	}
	raw, err := r.runner.Output(ctx, def.WorkDir(), "docker", object, "ls",
		"--filter", "label="+projectLabel+"="+project, "--format", format)
	if err != nil {
		return nil, fmt.Errorf("docker %s ls: %w", object, err)
	}
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
