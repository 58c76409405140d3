package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	defer func() { Logger = nil }()

	SetLevel(LevelWarn)
	defer SetLevel(LevelDebug)

	Debug("调试 %d", 1)
	Info("信息 %d", 2)
	Warn("警告 %d", 3)
	Error("错误 %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "[DEBUG]")
	assert.NotContains(t, out, "[INFO]")
	assert.Contains(t, out, "[WARN] 警告 3")
	assert.Contains(t, out, "[ERROR] 错误 4")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestNilLoggerDrops(t *testing.T) {
	Logger = nil
	// 未初始化时不应 panic
	Info("ignored")
	Error("ignored %v", nil)
}
