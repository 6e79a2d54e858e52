//go:build !unix

package runtime

import "os/exec"

func shell() []string { return []string{"cmd.exe", "/C"} }

func setProcessGroup(*exec.Cmd) {}

func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
