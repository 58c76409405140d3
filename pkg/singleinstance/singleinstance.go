package singleinstance

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ErrRunning 已有实例在运行
var ErrRunning = errors.New("程序已在运行")

// Owner 锁文件中记录的持有进程
type Owner struct {
	Pid       int       `json:"pid"`
	StartTime time.Time `json:"start_time"`
	Backend   string    `json:"backend,omitempty"`
}

// LockFile 单实例锁文件
type LockFile struct {
	path string
	file *os.File
}

// New 在用户配置目录下创建单实例锁
func New(appName string) *LockFile {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return NewAt(filepath.Join(dir, appName, appName+".lock"))
}

// NewAt 使用指定路径的锁文件
func NewAt(path string) *LockFile {
	return &LockFile{path: path}
}

// Path 锁文件路径
func (l *LockFile) Path() string {
	return l.path
}

// TryLock 尝试获取锁，已有实例运行时返回包装了 ErrRunning 的错误
func (l *LockFile) TryLock(backend string) error {
	return l.tryLock(backend, true)
}

func (l *LockFile) tryLock(backend string, retry bool) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("创建锁文件目录失败: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("创建锁文件失败: %w", err)
		}
		owner, readErr := ReadOwner(l.path)
		if readErr == nil && alive(owner.Pid) {
			return fmt.Errorf("%w - PID: %d, 启动时间: %s", ErrRunning,
				owner.Pid, owner.StartTime.Format("2006-01-02 15:04:05"))
		}
		if !retry {
			return fmt.Errorf("无法清理旧的锁文件: %s", l.path)
		}
		// 持有进程已退出或内容损坏，删除后重试一次
		os.Remove(l.path)
		return l.tryLock(backend, false)
	}

	data, err := json.MarshalIndent(Owner{
		Pid:       os.Getpid(),
		StartTime: time.Now(),
		Backend:   backend,
	}, "", "  ")
	if err == nil {
		_, err = file.Write(data)
	}
	if err != nil {
		file.Close()
		os.Remove(l.path)
		return fmt.Errorf("写入进程信息失败: %w", err)
	}

	l.file = file
	return nil
}

// Release 释放锁
func (l *LockFile) Release() {
	if l.file != nil {
		l.file.Close()
		os.Remove(l.path)
		l.file = nil
	}
}

// ReadOwner 读取锁文件记录的进程信息
func ReadOwner(path string) (Owner, error) {
	var owner Owner
	content, err := os.ReadFile(path)
	if err != nil {
		return owner, fmt.Errorf("读取锁文件失败: %w", err)
	}
	if err := json.Unmarshal(content, &owner); err != nil {
		return owner, fmt.Errorf("解析锁文件内容失败: %w", err)
	}
	return owner, nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}
