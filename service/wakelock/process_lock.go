//go:build linux || darwin

package wakelock

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"cookmode/pkg/logger"
)

var (
	execCommand = exec.Command
	lookPath    = exec.LookPath

	// startupGrace 进程启动后在此时间内退出视为获取失败
	startupGrace = 200 * time.Millisecond
)

// processProvider 通过常驻子进程持有唤醒锁（systemd-inhibit、caffeinate）
type processProvider struct {
	name string
	args []string
}

func (p *processProvider) Supported() bool {
	_, err := lookPath(p.name)
	return err == nil
}

func (p *processProvider) Request(ctx context.Context, kind Kind) (Lock, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquireFailed, err)
	}

	cmd := execCommand(p.name, p.args...)
	// 单独的进程组，释放时连同子进程一起结束
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: 启动 %s 失败: %v", ErrAcquireFailed, p.name, err)
	}

	l := newProcessLock(cmd)
	select {
	case <-l.done:
		return nil, fmt.Errorf("%w: %s 启动后立即退出: %v", ErrAcquireFailed, p.name, l.waitErr)
	case <-ctx.Done():
		l.Release()
		return nil, fmt.Errorf("%w: %v", ErrAcquireFailed, ctx.Err())
	case <-time.After(startupGrace):
	}

	logger.Info("使用 %s 获取唤醒锁成功，PID: %d", p.name, cmd.Process.Pid)
	return l, nil
}

// processLock 子进程存活期间持有唤醒锁，进程退出即视为释放
type processLock struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error

	releaseNotifier
}

func newProcessLock(cmd *exec.Cmd) *processLock {
	l := &processLock{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go l.wait()
	return l
}

func (l *processLock) wait() {
	l.waitErr = l.cmd.Wait()
	close(l.done)
	logger.Debug("唤醒锁进程已退出，PID: %d, 结果: %v", l.cmd.Process.Pid, l.waitErr)
	l.fire()
}

func (l *processLock) Release() {
	select {
	case <-l.done:
		return
	default:
	}

	pid := l.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if err := l.cmd.Process.Kill(); err != nil {
			logger.Error("释放唤醒锁失败，PID: %d: %v", pid, err)
			return
		}
	}
	logger.Info("释放唤醒锁成功，PID: %d", pid)
}
