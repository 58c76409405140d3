package system

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/process"
)

// ErrNotSupported 当前平台无法列出阻止休眠的进程
var ErrNotSupported = errors.New("当前平台不支持查询阻止休眠的进程")

// Inhibitor 表示一个阻止系统或屏幕休眠的进程
type Inhibitor struct {
	PID     int    // 进程ID
	Name    string // 进程名
	Who     string // 申请者
	What    string // 阻止的类型（idle、sleep、PreventUserIdleDisplaySleep 等）
	Why     string // 阻止的原因
	Mode    string // block 或 delay
	Details string // 命令行等详细信息
}

// Description 返回阻止类型的本地化描述
func (i Inhibitor) Description() string {
	switch {
	case strings.Contains(i.What, "Display"), i.What == "idle":
		return "防止显示器休眠"
	case strings.Contains(i.What, "sleep"), strings.Contains(i.What, "SystemSleep"):
		return "防止系统休眠"
	case strings.Contains(i.What, "handle-"):
		return "接管电源按键"
	default:
		return "未知类型"
	}
}

var execOutput = func(name string, args ...string) ([]byte, error) {
	return execCommand(name, args...).Output()
}

// ListInhibitors 获取当前阻止休眠的进程列表
func ListInhibitors() ([]Inhibitor, error) {
	list, err := listPlatformInhibitors()
	if err != nil {
		return nil, err
	}
	for i := range list {
		enrich(&list[i])
	}
	return list, nil
}

// enrich 通过进程表补全进程名和命令行
func enrich(inh *Inhibitor) {
	if inh.PID <= 0 {
		return
	}
	p, err := process.NewProcess(int32(inh.PID))
	if err != nil {
		return
	}
	if inh.Name == "" {
		if name, err := p.Name(); err == nil {
			inh.Name = name
		}
	}
	if cmdline, err := p.Cmdline(); err == nil && cmdline != "" {
		inh.Details = cmdline
	}
}

// ParseSystemdInhibitList 解析 systemd-inhibit --list 的输出。
// 列按表头位置切分，WHO 和 WHY 中可以包含空格
func ParseSystemdInhibitList(output string) []Inhibitor {
	lines := strings.Split(output, "\n")
	var header []rune
	var columns map[string][2]int
	var result []Inhibitor

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		runes := []rune(line)
		if header == nil {
			if strings.HasPrefix(strings.TrimSpace(line), "WHO") {
				header = runes
				columns = headerColumns(header)
			}
			continue
		}

		field := func(name string) string {
			span, ok := columns[name]
			if !ok || span[0] >= len(runes) {
				return ""
			}
			end := span[1]
			if end < 0 || end > len(runes) {
				end = len(runes)
			}
			return strings.TrimSpace(string(runes[span[0]:end]))
		}

		pid, err := strconv.Atoi(field("PID"))
		if err != nil {
			// 末尾的 "N inhibitors listed." 等非数据行
			continue
		}
		result = append(result, Inhibitor{
			PID:  pid,
			Name: field("COMM"),
			Who:  field("WHO"),
			What: field("WHAT"),
			Why:  field("WHY"),
			Mode: field("MODE"),
		})
	}
	return result
}

// headerColumns 计算每一列的起止位置（按字符计），最后一列到行尾
func headerColumns(header []rune) map[string][2]int {
	type col struct {
		name  string
		start int
	}
	var cols []col
	for i := 0; i < len(header); {
		if header[i] == ' ' {
			i++
			continue
		}
		j := i
		for j < len(header) && header[j] != ' ' {
			j++
		}
		cols = append(cols, col{string(header[i:j]), i})
		i = j
	}

	spans := make(map[string][2]int, len(cols))
	for k, c := range cols {
		end := -1
		if k+1 < len(cols) {
			end = cols[k+1].start
		}
		spans[c.name] = [2]int{c.start, end}
	}
	return spans
}

var pmsetAssertionRe = regexp.MustCompile(`pid (\d+)\(([^)]*)\): \[[^\]]*\] (\S+) (\w+) named: "(.*)"`)

// ParsePmsetAssertions 解析 macOS pmset -g assertions 中按进程列出的断言
func ParsePmsetAssertions(output string) []Inhibitor {
	var result []Inhibitor
	for _, line := range strings.Split(output, "\n") {
		m := pmsetAssertionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pid, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		result = append(result, Inhibitor{
			PID:     pid,
			Name:    m[2],
			Who:     m[2],
			What:    m[4],
			Why:     m[5],
			Details: "持续时间 " + m[3],
		})
	}
	return result
}
