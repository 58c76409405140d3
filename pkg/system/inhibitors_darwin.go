//go:build darwin
// +build darwin

package system

import "fmt"

func listPlatformInhibitors() ([]Inhibitor, error) {
	output, err := execOutput("pmset", "-g", "assertions")
	if err != nil {
		return nil, fmt.Errorf("执行 pmset 失败: %w", err)
	}
	return ParsePmsetAssertions(string(output)), nil
}
