//go:build !linux && !darwin && !windows

package wakelock

func newPlatformProvider(Options) Provider {
	return unsupportedProvider{}
}
