package compose

import (
	"os/exec"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// Command is a fully built shell invocation.
type Command struct {
	Invocation string
	Dir        string
	Env        map[string]string
}

// Environ returns base with Env applied on top.
func (c Command) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(c.Env))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := c.Env[k]; overridden {
			continue
		}
		out = append(out, kv)
	}
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return out
}

// CommandBuilder turns a verb and definition into a command. composeFile is
// the rendered document, empty for kinds that have none. Build must not
// touch the filesystem or spawn processes.
type CommandBuilder interface {
	Build(verb Verb, def *Definition, opts Options, composeFile string) Command
}

// CLIBuilder drives the docker compose CLI.
type CLIBuilder struct {
	binary string
	docker string
}

// NewCLIBuilder returns a builder for binary ("docker compose" or
// "docker-compose"). An empty binary is detected with DetectBinary.
func NewCLIBuilder(binary string) *CLIBuilder {
	if binary == "" {
		binary = DetectBinary()
	}
	return &CLIBuilder{binary: binary, docker: "docker"}
}

// Binary returns the compose invocation prefix.
func (b *CLIBuilder) Binary() string { return b.binary }

// DetectBinary prefers the compose plugin and falls back to the standalone
// docker-compose, then to "docker compose" when neither answers.
func DetectBinary() string {
	candidates := [][]string{
		{"docker", "compose", "version"},
		{"docker-compose", "version"},
	}
	for _, c := range candidates {
		if err := exec.Command(c[0], c[1:]...).Run(); err == nil {
			return strings.Join(c[:len(c)-1], " ")
		}
	}
	return "docker compose"
}

func (b *CLIBuilder) Build(verb Verb, def *Definition, opts Options, composeFile string) Command {
	var invocation string
	switch def.Kind() {
	case KindContainer:
		invocation = b.containerInvocation(verb, def.ContainerName())
	case KindProject:
		invocation = b.composeInvocation(verb, opts, "-p "+shellescape.Quote(def.ProjectName()))
	default:
		target := strings.Join([]string{
			"-f", shellescape.Quote(composeFile),
			"-p", shellescape.Quote(def.ProjectName()),
			"--project-directory", shellescape.Quote(def.WorkDir()),
		}, " ")
		invocation = b.composeInvocation(verb, opts, target)
	}
	return Command{Invocation: invocation, Dir: def.WorkDir(), Env: def.Env()}
}

func (b *CLIBuilder) composeInvocation(verb Verb, opts Options, target string) string {
	parts := []string{b.binary, target}
	parts = append(parts, opts.Flags...)
	parts = append(parts, subcommand(verb, opts)...)
	if opts.Member != "" {
		parts = append(parts, shellescape.Quote(opts.Member))
	}
	return strings.Join(parts, " ")
}

func subcommand(verb Verb, opts Options) []string {
	switch verb {
	case VerbStart:
		args := []string{"up", "-d"}
		if opts.Rebuild {
			args = append(args, "--build")
		}
		return args
	case VerbStop:
		return []string{"stop"}
	case VerbRemove:
		args := []string{"down"}
		if opts.RemoveVolumes {
			args = append(args, "--volumes")
		}
		if opts.RemoveImages != "" {
			args = append(args, "--rmi", shellescape.Quote(opts.RemoveImages))
		}
		return args
	case VerbRestart:
		return []string{"restart"}
	default:
		return []string{shellescape.Quote(string(verb))}
	}
}

func (b *CLIBuilder) containerInvocation(verb Verb, name string) string {
	var sub string
	switch verb {
	case VerbStart:
		sub = "start"
	case VerbStop:
		sub = "stop"
	case VerbRemove:
		sub = "rm -f"
	case VerbRestart:
		sub = "restart"
	default:
		sub = shellescape.Quote(string(verb))
	}
	return b.docker + " " + sub + " " + shellescape.Quote(name)
}
