//go:build windows
// +build windows

package wakelock

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"cookmode/pkg/logger"

	"golang.org/x/sys/windows"
)

const (
	ES_CONTINUOUS       = 0x80000000
	ES_SYSTEM_REQUIRED  = 0x00000001
	ES_DISPLAY_REQUIRED = 0x00000002
)

var setThreadExecState = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadExecutionState")

func newPlatformProvider(opts Options) Provider {
	switch opts.Backend {
	case "auto", "windows":
		return windowsProvider{}
	default:
		logger.Error("Windows 平台不支持唤醒锁后端: %s", opts.Backend)
		return unsupportedProvider{}
	}
}

type windowsProvider struct{}

func (windowsProvider) Supported() bool {
	return setThreadExecState.Find() == nil
}

// Request 执行状态是线程级的，所以锁由一个绑定系统线程的 goroutine 持有
func (windowsProvider) Request(ctx context.Context, kind Kind) (Lock, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquireFailed, err)
	}

	l := &windowsLock{
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	result := make(chan error, 1)
	go l.hold(result)
	if err := <-result; err != nil {
		return nil, fmt.Errorf("%w: 设置线程执行状态失败: %v", ErrAcquireFailed, err)
	}

	logger.Info("获取唤醒锁成功")
	return l, nil
}

type windowsLock struct {
	release     chan struct{}
	done        chan struct{}
	releaseOnce sync.Once

	releaseNotifier
}

func (l *windowsLock) hold(result chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ret, _, err := setThreadExecState.Call(uintptr(ES_CONTINUOUS | ES_SYSTEM_REQUIRED | ES_DISPLAY_REQUIRED))
	if ret == 0 {
		result <- err
		return
	}
	result <- nil

	<-l.release
	if ret, _, err := setThreadExecState.Call(uintptr(ES_CONTINUOUS)); ret == 0 {
		logger.Error("恢复线程执行状态失败: %v", err)
	}
	close(l.done)
	l.fire()
}

func (l *windowsLock) Release() {
	l.releaseOnce.Do(func() {
		close(l.release)
		<-l.done
		logger.Info("释放唤醒锁成功")
	})
}
