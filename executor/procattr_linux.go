//go:build linux
// +build linux

package executor

import (
	"syscall"
)

func procAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGINT,
		Setpgid:   true,
	}
}
