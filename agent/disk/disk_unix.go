//go:build !windows
// +build !windows

package disk

import (
	"context"
	"strings"

	d "github.com/shirou/gopsutil/v3/disk"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

const foldPaths = false

// Partitions is the gopsutil backed provider
type Partitions struct{}

func (Partitions) Name() string { return "gopsutil" }

func (Partitions) Disks(ctx context.Context) ([]rmm.DiskInfo, error) {
	ret := make([]rmm.DiskInfo, 0)
	partitions, err := d.PartitionsWithContext(ctx, false)
	if err != nil {
		return ret, err
	}

	for _, p := range partitions {
		if strings.Contains(p.Device, "dev/loop") {
			continue
		}
		u, err := d.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
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
