//go:build darwin
// +build darwin

package wakelock

import "cookmode/pkg/logger"

func newPlatformProvider(opts Options) Provider {
	switch opts.Backend {
	case "auto", "caffeinate":
		// -d: 防止显示器睡眠
		// -i: 防止系统空闲睡眠
		return &processProvider{name: "caffeinate", args: []string{"-d", "-i"}}
	default:
		logger.Error("macOS 平台不支持唤醒锁后端: %s", opts.Backend)
		return unsupportedProvider{}
	}
}
