//go:build !windows
// +build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// killGroup sends sig to the whole process group the command was started in,
// so a cancelled pipeline's helper processes (mbuffer, pv, the compressor,
// the remote ssh) are terminated along with the command itself.
func killGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}
