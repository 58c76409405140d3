//go:build !linux

package visibility

func newPlatformMonitor(handler Handler) Monitor {
	return newClockMonitor(handler)
}
