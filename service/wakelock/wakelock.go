package wakelock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cookmode/pkg/logger"
)

// Kind 唤醒锁类型
type Kind string

// KindScreen 阻止屏幕熄灭
const KindScreen Kind = "screen"

var (
	// ErrUnsupported 平台不提供唤醒锁
	ErrUnsupported = errors.New("平台不支持唤醒锁")
	// ErrAcquireFailed 平台拒绝或无法完成唤醒锁请求
	ErrAcquireFailed = errors.New("获取唤醒锁失败")
)

// Lock 一个已获得的唤醒锁
type Lock interface {
	// Release 释放唤醒锁，可重复调用
	Release()

	// OnReleased 注册释放回调。无论是主动释放还是被系统收回，
	// 每个锁最多触发一次；注册时锁已释放则立即调用
	OnReleased(fn func())
}

// Provider 平台唤醒锁提供者
type Provider interface {
	// Supported 检查平台是否具备唤醒锁能力，没有副作用
	Supported() bool

	// Request 请求一个唤醒锁
	Request(ctx context.Context, kind Kind) (Lock, error)
}

// Options 创建平台提供者的参数
type Options struct {
	Backend string // auto, systemd, dbus, caffeinate, windows
	App     string // 提交给系统的应用名
	Why     string // 提交给系统的阻止原因
}

// NewProvider 按配置创建当前平台的唤醒锁提供者
func NewProvider(opts Options) Provider {
	if opts.Backend == "" {
		opts.Backend = "auto"
	}
	if opts.App == "" {
		opts.App = "cookmode"
	}
	return newPlatformProvider(opts)
}

// fallbackProvider 依次尝试多个提供者，使用第一个可用的
type fallbackProvider struct {
	candidates []Provider
}

// Fallback 组合多个提供者，按顺序选择第一个可用的
func Fallback(candidates ...Provider) Provider {
	return &fallbackProvider{candidates: candidates}
}

func (p *fallbackProvider) Supported() bool {
	return p.pick() != nil
}

// Request 按顺序向可用的提供者请求，前一个失败时继续尝试下一个
func (p *fallbackProvider) Request(ctx context.Context, kind Kind) (Lock, error) {
	var errs []error
	for _, c := range p.candidates {
		if !c.Supported() {
			continue
		}
		lock, err := c.Request(ctx, kind)
		if err == nil {
			return lock, nil
		}
		logger.Warn("唤醒锁后端请求失败，尝试下一个: %v", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, ErrUnsupported
	}
	if !errors.Is(errs[0], ErrAcquireFailed) {
		errs = append([]error{ErrAcquireFailed}, errs...)
	}
	return nil, errors.Join(errs...)
}

func (p *fallbackProvider) pick() Provider {
	for _, c := range p.candidates {
		if c.Supported() {
			return c
		}
	}
	return nil
}

// unsupportedProvider 不支持唤醒锁的平台
type unsupportedProvider struct{}

func (unsupportedProvider) Supported() bool { return false }

func (unsupportedProvider) Request(context.Context, Kind) (Lock, error) {
	return nil, ErrUnsupported
}

func checkKind(kind Kind) error {
	if kind != KindScreen {
		return fmt.Errorf("%w: 不支持的唤醒锁类型 %q", ErrAcquireFailed, kind)
	}
	return nil
}

// releaseNotifier 管理释放回调，保证每个锁最多触发一次
type releaseNotifier struct {
	mu        sync.Mutex
	released  bool
	callbacks []func()
}

func (n *releaseNotifier) fire() {
	n.mu.Lock()
	if n.released {
		n.mu.Unlock()
		return
	}
	n.released = true
	callbacks := n.callbacks
	n.callbacks = nil
	n.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (n *releaseNotifier) OnReleased(fn func()) {
	n.mu.Lock()
	if n.released {
		n.mu.Unlock()
		fn()
		return
	}
	n.callbacks = append(n.callbacks, fn)
	n.mu.Unlock()
}
