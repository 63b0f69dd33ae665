//go:build !linux
// +build !linux

package metrics

func currentMHz() (float64, bool) {
	return 0, false
}
