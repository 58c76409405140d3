package crash

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"cookmode/pkg/logger"
)

// Reporter 把未处理的 panic 写成崩溃报告，只保留最近的若干份
type Reporter struct {
	appName    string
	reportDir  string
	maxReports int
	now        func() time.Time
}

func NewReporter(appName, reportDir string, maxReports int) *Reporter {
	return &Reporter{
		appName:    appName,
		reportDir:  reportDir,
		maxReports: maxReports,
		now:        time.Now,
	}
}

// Recover 需要 defer 调用。写出报告后继续 panic，让进程按原样退出
func (r *Reporter) Recover() {
	if err := recover(); err != nil {
		if path, werr := r.Report(err); werr == nil {
			logger.Error("程序崩溃，报告已写入: %s", path)
		}
		panic(err)
	}
}

// Report 写出一份崩溃报告并清理旧报告
func (r *Reporter) Report(cause interface{}) (string, error) {
	if err := os.MkdirAll(r.reportDir, 0755); err != nil {
		logger.Error("创建崩溃报告目录失败: %v", err)
		return "", err
	}

	now := r.now()
	reportPath := filepath.Join(r.reportDir,
		fmt.Sprintf("crash_%s_%s.log", r.appName, now.Format("20060102_150405.000")))

	file, err := os.Create(reportPath)
	if err != nil {
		logger.Error("创建崩溃报告文件失败: %v", err)
		return "", err
	}
	defer file.Close()

	writeReport(file, now, cause)
	r.cleanup()
	return reportPath, nil
}

func writeReport(w io.Writer, now time.Time, cause interface{}) {
	fmt.Fprintf(w, "时间: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "系统: %s\n", runtime.GOOS)
	fmt.Fprintf(w, "架构: %s\n", runtime.GOARCH)
	fmt.Fprintf(w, "Go版本: %s\n", runtime.Version())
	fmt.Fprintf(w, "\n错误信息:\n%v\n", cause)

	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	fmt.Fprintf(w, "\n堆栈信息:\n%s", buf[:n])
}

// cleanup 按修改时间删除最旧的报告
func (r *Reporter) cleanup() {
	entries, err := os.ReadDir(r.reportDir)
	if err != nil {
		return
	}

	type report struct {
		path    string
		modTime time.Time
	}
	prefix := "crash_" + r.appName + "_"
	var reports []report
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		reports = append(reports, report{filepath.Join(r.reportDir, entry.Name()), info.ModTime()})
	}
	if len(reports) <= r.maxReports {
		return
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].modTime.Equal(reports[j].modTime) {
			return reports[i].path < reports[j].path
		}
		return reports[i].modTime.Before(reports[j].modTime)
	})
	for _, rep := range reports[:len(reports)-r.maxReports] {
		os.Remove(rep.path)
	}
}
