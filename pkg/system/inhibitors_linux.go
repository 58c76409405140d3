//go:build linux
// +build linux

package system

import (
	"fmt"

	"cookmode/pkg/logger"
)

func listPlatformInhibitors() ([]Inhibitor, error) {
	output, err := execOutput("systemd-inhibit", "--list", "--no-pager")
	if err != nil {
		logger.Debug("systemd-inhibit 不可用: %v", err)
		return nil, fmt.Errorf("执行 systemd-inhibit 失败: %w", err)
	}
	return ParseSystemdInhibitList(string(output)), nil
}
