//go:build linux
// +build linux

package wakelock

import "cookmode/pkg/logger"

func newPlatformProvider(opts Options) Provider {
	systemd := &processProvider{
		name: "systemd-inhibit",
		args: []string{
			"--what=idle",
			"--who=" + opts.App,
			"--why=" + opts.Why,
			"--mode=block",
			"sleep", "infinity",
		},
	}
	screenSaver := newScreenSaverProvider(opts.App, opts.Why)

	switch opts.Backend {
	case "systemd":
		return systemd
	case "dbus":
		return screenSaver
	case "auto":
		// 桌面会话优先使用 ScreenSaver 接口，它直接阻止屏幕熄灭
		return Fallback(screenSaver, systemd)
	default:
		logger.Error("Linux 平台不支持唤醒锁后端: %s", opts.Backend)
		return unsupportedProvider{}
	}
}
