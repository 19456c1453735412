//go:build windows
// +build windows

package executor

import (
	"os/exec"
	"syscall"
)

func killGroup(cmd *exec.Cmd, _ syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
