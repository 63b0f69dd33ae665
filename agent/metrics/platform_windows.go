package metrics

import "context"

const IdleProcessName = "System Idle Process"

// Windows has no load average
func loadAvg(ctx context.Context) (*[3]float64, error) {
	return nil, nil
}
