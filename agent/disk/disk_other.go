//go:build !windows && !linux
// +build !windows,!linux

package disk

func DefaultProviders() []Provider {
	return []Provider{Partitions{}}
}
