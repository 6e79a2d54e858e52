package inspect

import (
	"context"
	"os/exec"
)

// Runner executes a read-only command and returns its stdout. It exists so
// tests can substitute canned docker output.
type Runner interface {
	Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs real processes.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (ExecRunner) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.Output()
}
