//go:build !windows
// +build !windows

package system

import (
	"os"
	"syscall"
)

const DefaultShell = "/bin/sh"

func SetDetached() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// ShellArgs wraps a command line for DefaultShell style shells
func ShellArgs(command string) []string {
	return []string{"-c", command}
}

// ExitSignal returns the number of the signal that ended the process
func ExitSignal(ps *os.ProcessState) (int, bool) {
	if ps == nil {
		return 0, false
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return int(ws.Signal()), true
}
