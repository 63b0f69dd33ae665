package metrics

import (
	"github.com/prometheus/procfs"
)

// currentMHz averages the per core "cpu MHz" lines of /proc/cpuinfo
func currentMHz() (float64, bool) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return 0, false
	}

	infos, err := fs.CPUInfo()
	if err != nil || len(infos) == 0 {
		return 0, false
	}

	var sum float64
	var n int
	for _, info := range infos {
		if info.CPUMHz > 0 {
			sum += info.CPUMHz
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
