//go:build !windows && !linux
// +build !windows,!linux

package metrics

func defaultTempProviders() []TemperatureProvider {
	return []TemperatureProvider{Sensors{}}
}
