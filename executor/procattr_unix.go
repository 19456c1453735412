//go:build !freebsd && !linux && !windows
// +build !freebsd,!linux,!windows

package executor

import (
	"syscall"
)

func procAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}
