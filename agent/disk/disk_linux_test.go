package disk

import (
	"errors"
	"testing"

	"github.com/jaypipes/ghw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rmm "github.com/vpscope/vpsagent/shared"
)

func TestPartitionUsage(t *testing.T) {
	parts := []*ghw.Partition{
		{Name: "vda1", MountPoint: "/", Type: "ext4", SizeBytes: 100},
		{Name: "vda2", MountPoint: "", Type: "swap", SizeBytes: 10},
		{Name: "vdb1", MountPoint: "/mnt/gone", Type: "xfs", SizeBytes: 50},
	}

	stat := func(device, mountpoint, fstype string) (rmm.DiskInfo, error) {
		if mountpoint == "/mnt/gone" {
			return rmm.DiskInfo{}, errors.New("stale file handle")
		}
		return usage(device, mountpoint, fstype, 100, 60, 60), nil
	}

	got := partitionUsage(parts, stat)
	require.Len(t, got, 1)
	assert.Equal(t, "/dev/vda1", got[0].Device)
	assert.Equal(t, uint64(40), got[0].Used)
}

func TestStatfsMissingMount(t *testing.T) {
	_, err := statfs("/dev/none", "/nonexistent/vpsagent/mount", "ext4")
	assert.Error(t, err)
}
