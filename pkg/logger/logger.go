package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// Level 日志级别
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	logFile *os.File
	Logger  *log.Logger
	level   atomic.Int32
)

func GetLogPath() string {
	var logDir string
	switch runtime.GOOS {
	case "windows":
		logDir = filepath.Join(os.Getenv("APPDATA"), "cookmode", "logs")
	case "darwin":
		logDir = filepath.Join(os.Getenv("HOME"), "Library", "Logs", "cookmode")
	case "linux":
		logDir = filepath.Join(os.Getenv("HOME"), ".local", "share", "cookmode", "logs")
	default:
		logDir = "logs"
	}
	return logDir
}

// ParseLevel 解析配置中的日志级别，无法识别时返回 info
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel 设置最低输出级别
func SetLevel(l Level) {
	level.Store(int32(l))
}

func Init() error {
	logDir := GetLogPath()

	// 确保日志目录存在
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("cookmode_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}

	logFile = file

	// 同时输出到文件和终端
	InitWriter(io.MultiWriter(file, os.Stdout))

	Info("日志初始化完成，日志路径: %s", logPath)
	return nil
}

// InitWriter 使用指定的输出初始化日志，测试中也可使用
func InitWriter(w io.Writer) {
	Logger = log.New(w, "", log.LstdFlags)
}

func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func output(l Level, tag, format string, v ...interface{}) {
	if Logger == nil || Level(level.Load()) > l {
		return
	}
	Logger.Printf(tag+format, v...)
}

func Debug(format string, v ...interface{}) {
	output(LevelDebug, "[DEBUG] ", format, v...)
}

func Info(format string, v ...interface{}) {
	output(LevelInfo, "[INFO] ", format, v...)
}

func Warn(format string, v ...interface{}) {
	output(LevelWarn, "[WARN] ", format, v...)
}

func Error(format string, v ...interface{}) {
	output(LevelError, "[ERROR] ", format, v...)
}
