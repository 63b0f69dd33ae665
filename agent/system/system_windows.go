package system

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

const DefaultShell = "cmd.exe"

func SetDetached() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// ShellArgs wraps a command line for cmd.exe
func ShellArgs(command string) []string {
	return []string{"/C", command}
}

// ExitSignal always reports false, windows processes end with an exit code
func ExitSignal(_ *os.ProcessState) (int, bool) {
	return 0, false
}
