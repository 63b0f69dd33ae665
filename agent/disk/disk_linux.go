package disk

import (
	"context"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/prometheus/procfs"
	rmm "github.com/vpscope/vpsagent/shared"
	"golang.org/x/sys/unix"
)

func DefaultProviders() []Provider {
	return []Provider{Partitions{}, Mounts{}, Block{}}
}

// Mounts reads /proc/self/mountinfo and stats every block device mount
type Mounts struct{}

func (Mounts) Name() string { return "procfs" }

func (Mounts) Disks(ctx context.Context) ([]rmm.DiskInfo, error) {
	ret := make([]rmm.DiskInfo, 0)
	mounts, err := procfs.GetMounts()
	if err != nil {
		return ret, err
	}

	seen := make(map[string]bool)
	for _, m := range mounts {
		if ctx.Err() != nil {
			return ret, ctx.Err()
		}
		if !strings.HasPrefix(m.Source, "/dev/") || strings.HasPrefix(m.Source, "/dev/loop") {
			continue
		}
		if seen[m.MountPoint] {
			continue
		}

		di, err := statfs(m.Source, m.MountPoint, m.FSType)
		if err != nil {
			continue
		}
		seen[m.MountPoint] = true
		ret = append(ret, di)
	}

	return ret, nil
}

// Block walks the partitions ghw finds under /sys/block
type Block struct{}

func (Block) Name() string { return "ghw" }

func (Block) Disks(ctx context.Context) ([]rmm.DiskInfo, error) {
	ret := make([]rmm.DiskInfo, 0)
	block, err := ghw.Block(ghw.WithDisableWarnings())
	if err != nil {
		return ret, err
	}

	for _, disk := range block.Disks {
		if strings.HasPrefix(disk.Name, "loop") || strings.Contains(disk.Name, "ram") {
			continue
		}
		if ctx.Err() != nil {
			return ret, ctx.Err()
		}
		ret = append(ret, partitionUsage(disk.Partitions, statfs)...)
	}

	return ret, nil
}

// partitionUsage keeps mounted partitions whose usage could be read
func partitionUsage(parts []*ghw.Partition, stat func(device, mountpoint, fstype string) (rmm.DiskInfo, error)) []rmm.DiskInfo {
	ret := make([]rmm.DiskInfo, 0, len(parts))
	for _, part := range parts {
		if part.MountPoint == "" {
			continue
		}

		di, err := stat("/dev/"+part.Name, part.MountPoint, part.Type)
		if err != nil {
			continue
		}
		ret = append(ret, di)
	}
	return ret
}

func statfs(device, mountpoint, fstype string) (rmm.DiskInfo, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(mountpoint, &st); err != nil {
		return rmm.DiskInfo{}, err
	}

	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	if total == 0 {
		return rmm.DiskInfo{}, ErrNoVolumes
	}
	return usage(device, mountpoint, fstype, total, st.Bfree*bsize, st.Bavail*bsize), nil
}
