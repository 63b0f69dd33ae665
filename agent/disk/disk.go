package disk

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

var ErrNoVolumes = errors.New("no volumes found")

// Provider enumerates mounted volumes with their usage
type Provider interface {
	Name() string
	Disks(ctx context.Context) ([]rmm.DiskInfo, error)
}

// Collect asks each provider in order and returns the first non-empty result.
// When every provider fails the result is an empty, non-nil slice.
func Collect(ctx context.Context, providers []Provider, logger logrus.FieldLogger) []rmm.DiskInfo {
	for _, p := range providers {
		if ctx.Err() != nil {
			break
		}

		disks, err := p.Disks(ctx)
		if err != nil {
			logger.Debugln("disk provider", p.Name(), err)
			continue
		}
		if len(disks) == 0 {
			logger.Debugln("disk provider", p.Name(), ErrNoVolumes)
			continue
		}
		logger.Debugf("disk provider %s: %d volumes, %s total", p.Name(), len(disks), utils.ByteCountSI(totalOf(disks)))
		return disks
	}

	logger.Warnln("no disk provider returned any volume")
	return []rmm.DiskInfo{}
}

func totalOf(disks []rmm.DiskInfo) uint64 {
	var total uint64
	for _, d := range disks {
		total += d.Total
	}
	return total
}

// Primary picks the volume holding cwd: the longest mountpoint that is a
// path prefix of cwd, else the first volume.
func Primary(disks []rmm.DiskInfo, cwd string) (rmm.DiskInfo, bool) {
	if len(disks) == 0 {
		return rmm.DiskInfo{}, false
	}

	best, bestLen := -1, -1
	for i, d := range disks {
		mp := strings.TrimRight(d.Mountpoint, `/\`)
		if !hasPathPrefix(cwd, mp) {
			continue
		}
		if len(mp) > bestLen {
			best, bestLen = i, len(mp)
		}
	}

	if best < 0 {
		return disks[0], true
	}
	return disks[best], true
}

func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return strings.HasPrefix(path, "/")
	}
	if len(path) < len(prefix) || !pathEqual(path[:len(prefix)], prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	c := path[len(prefix)]
	return c == '/' || c == '\\'
}

func pathEqual(a, b string) bool {
	if foldPaths {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func usage(device, mountpoint, fstype string, total, free, avail uint64) rmm.DiskInfo {
	used := total - free
	var percent float64
	if used+avail > 0 {
		percent = utils.Round2(float64(used) / float64(used+avail) * 100)
	}

	return rmm.DiskInfo{
		Device:     device,
		Mountpoint: mountpoint,
		Fstype:     fstype,
		Total:      total,
		Used:       used,
		Free:       avail,
		Percent:    percent,
	}
}
