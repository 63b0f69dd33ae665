package disk

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
	"golang.org/x/sys/windows"
)

const foldPaths = true

func DefaultProviders() []Provider {
	return []Provider{Partitions{}, Drives{}}
}

func isFixed(root string) bool {
	typepath, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return false
	}
	// https://docs.microsoft.com/en-us/windows/win32/api/fileapi/nf-fileapi-getdrivetypea
	return windows.GetDriveType(typepath) == windows.DRIVE_FIXED
}

// Partitions returns fixed disks through gopsutil
type Partitions struct{}

func (Partitions) Name() string { return "gopsutil" }

func (Partitions) Disks(ctx context.Context) ([]rmm.DiskInfo, error) {
	ret := make([]rmm.DiskInfo, 0)
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return ret, err
	}

	for _, p := range partitions {
		if !isFixed(p.Device) {
			continue
		}

		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}

		ret = append(ret, rmm.DiskInfo{
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Fstype:     p.Fstype,
			Total:      u.Total,
			Used:       u.Used,
			Free:       u.Free,
			Percent:    utils.Round2(u.UsedPercent),
		})
	}

	return ret, nil
}

// Drives enumerates logical drive letters directly through kernel32
type Drives struct{}

func (Drives) Name() string { return "kernel32" }

func (Drives) Disks(ctx context.Context) ([]rmm.DiskInfo, error) {
	ret := make([]rmm.DiskInfo, 0)

	buf := make([]uint16, 254)
	n, err := windows.GetLogicalDriveStrings(uint32(len(buf)), &buf[0])
	if err != nil {
		return ret, err
	}

	for _, root := range splitDriveStrings(buf[:n]) {
		if ctx.Err() != nil {
			return ret, ctx.Err()
		}
		if root == "" || !isFixed(root) {
			continue
		}

		rootPtr, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}

		var avail, total, free uint64
		if err := windows.GetDiskFreeSpaceEx(rootPtr, &avail, &total, &free); err != nil || total == 0 {
			continue
		}

		fsName := make([]uint16, windows.MAX_PATH+1)
		fstype := ""
		if err := windows.GetVolumeInformation(rootPtr, nil, 0, nil, nil, nil, &fsName[0], uint32(len(fsName))); err == nil {
			fstype = windows.UTF16ToString(fsName)
		}

		mp := strings.TrimRight(root, `\`)
		ret = append(ret, usage(mp, mp, fstype, total, free, avail))
	}

	return ret, nil
}

// splitDriveStrings splits the NUL separated list GetLogicalDriveStrings fills
func splitDriveStrings(buf []uint16) []string {
	ret := make([]string, 0)
	start := 0
	for i, c := range buf {
		if c != 0 {
			continue
		}
		if i > start {
			ret = append(ret, windows.UTF16ToString(buf[start:i]))
		}
		start = i + 1
	}
	return ret
}
