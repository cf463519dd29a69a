//go:build windows

package process

import (
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func signalTerminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func forceKill(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}
