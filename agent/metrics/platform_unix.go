//go:build !windows
// +build !windows

package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/load"
)

// IdleProcessName is the pseudo process excluded from the process list
const IdleProcessName = ""

func loadAvg(ctx context.Context) (*[3]float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &[3]float64{avg.Load1, avg.Load5, avg.Load15}, nil
}
