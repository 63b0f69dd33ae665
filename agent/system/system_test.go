package system_test

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpscope/vpsagent/agent/system"
)

func TestGetHostInfo(t *testing.T) {
	info, err := system.GetHostInfo()
	require.NoError(t, err)

	assert.NotEmpty(t, info.Arch)
	assert.False(t, info.BootTime.IsZero())
	assert.True(t, info.BootTime.Before(time.Now()))
}

func TestOsName(t *testing.T) {
	testTable := map[string]string{
		"linux":   "Linux",
		"windows": "Windows",
		"darwin":  "Darwin",
		"freebsd": "Freebsd",
	}

	expected, ok := testTable[runtime.GOOS]
	if !ok {
		t.Skipf("no expectation for %s", runtime.GOOS)
	}
	assert.Equal(t, expected, system.OsName())
}

func TestKillProc(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	require.NoError(t, system.KillProc(int32(cmd.Process.Pid)))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process was not killed")
	}
}
