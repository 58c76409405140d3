package cookmode

import (
	"context"
	"errors"
	"sync"

	"cookmode/pkg/logger"
	"cookmode/service/wakelock"
)

// State 会话状态
type State int

const (
	StateIdle      State = iota // 未持有唤醒锁
	StateAcquiring              // 请求进行中
	StateHeld                   // 持有唤醒锁
	StateFailed                 // 平台不支持，会话不再可用
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateHeld:
		return "held"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session 屏幕唤醒锁会话，同一时间最多持有一个唤醒锁
type Session struct {
	provider wakelock.Provider
	control  Control
	sink     StatusSink
	texts    Texts

	ctx    context.Context
	cancel context.CancelFunc

	// releasing 在 s.mu 之外释放旧锁期间持有，新的请求先等它完成
	releasing sync.Mutex

	mu      sync.Mutex
	state   State
	handle  wakelock.Lock
	desired bool // 最近一次用户意图，请求返回时据此决定保留还是释放
	revoked bool // 锁被系统收回时用户仍希望开启，可见时需要重新获取
	closed  bool // 已卸载，不再响应事件
	status  StatusKind

	pending sync.WaitGroup
}

// NewSession 创建会话，此时不持有唤醒锁
func NewSession(provider wakelock.Provider, control Control, sink StatusSink, texts Texts) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		provider: provider,
		control:  control,
		sink:     sink,
		texts:    texts,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
		status:   StatusHidden,
	}
}

// Init 检查平台能力并订阅开关事件。平台不支持时禁用开关并显示错误，返回 false
func (s *Session) Init() bool {
	if !s.provider.Supported() {
		logger.Error("初始化烹饪模式失败: %v", wakelock.ErrUnsupported)
		s.mu.Lock()
		s.state = StateFailed
		s.setStatus(StatusError)
		s.mu.Unlock()
		s.control.Disable()
		return false
	}

	s.control.OnChange(s.HandleToggle)
	logger.Info("烹饪模式已就绪")
	return true
}

// HandleToggle 处理用户切换开关
func (s *Session) HandleToggle(checked bool) {
	if checked {
		s.Enable()
	} else {
		s.Disable()
	}
}

// Enable 请求唤醒锁，结果异步返回。已持有时只重新显示状态
func (s *Session) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.desired = true
	switch s.state {
	case StateFailed:
		return
	case StateHeld:
		s.setStatus(StatusActive)
		return
	case StateAcquiring:
		// 请求返回时会按最新意图处理
		return
	}
	s.startAcquire()
}

// Disable 释放唤醒锁并隐藏状态，未持有时也可调用
func (s *Session) Disable() {
	s.mu.Lock()
	if s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.desired = false
	s.revoked = false
	h := s.takeHandle()
	s.setStatus(StatusHidden)
	s.mu.Unlock()

	s.release(h)
}

// HandleVisibilityRestored 页面（会话）重新可见时，若锁在隐藏期间被系统收回则重新获取
func (s *Session) HandleVisibilityRestored() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.revoked || s.handle != nil || s.state != StateIdle {
		return
	}
	if !s.control.Checked() {
		s.revoked = false
		return
	}
	logger.Info("重新可见，重新获取唤醒锁")
	s.desired = true
	s.startAcquire()
}

// HandleUnload 退出前释放唤醒锁，不等待进行中的请求，也不会 panic
func (s *Session) HandleUnload() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("退出时释放唤醒锁出错: %v", r)
		}
	}()

	s.mu.Lock()
	s.closed = true
	s.desired = false
	s.revoked = false
	h := s.takeHandle()
	s.mu.Unlock()

	s.cancel()
	s.release(h)
}

// Wait 等待所有进行中的请求返回
func (s *Session) Wait() {
	s.pending.Wait()
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status 最近一次显示的状态及其文本
func (s *Session) Status() (StatusKind, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.texts.text(s.status)
}

// Held 是否持有唤醒锁
func (s *Session) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// startAcquire 需持有 s.mu
func (s *Session) startAcquire() {
	s.state = StateAcquiring
	s.revoked = false
	s.pending.Add(1)
	go s.acquire()
}

func (s *Session) acquire() {
	defer s.pending.Done()

	// 上一个锁释放完成后再请求，同一时间最多一个锁
	s.releasing.Lock()
	s.releasing.Unlock()

	lock, err := s.provider.Request(s.ctx, wakelock.KindScreen)

	s.mu.Lock()
	if err != nil && s.closed {
		s.state = StateIdle
		s.mu.Unlock()
		return
	}
	if err != nil {
		if !errors.Is(err, wakelock.ErrAcquireFailed) {
			err = errors.Join(wakelock.ErrAcquireFailed, err)
		}
		logger.Error("开启烹饪模式失败: %v", err)
		s.state = StateIdle
		s.desired = false
		// 在锁内取消勾选，之后的用户操作一定发生在它之后
		s.control.SetChecked(false)
		s.setStatus(StatusError)
		s.mu.Unlock()
		return
	}

	if !s.desired || !s.control.Checked() {
		// 请求期间用户已关闭、开关已被取消勾选或页面已卸载
		logger.Info("唤醒锁返回时已不需要，立即释放")
		s.state = StateIdle
		s.releasing.Lock()
		s.mu.Unlock()
		s.release(lock)
		return
	}

	s.handle = lock
	s.state = StateHeld
	s.setStatus(StatusActive)
	s.mu.Unlock()

	// 回调可能在 Release 的调用栈中同步触发，放到新的 goroutine 避免死锁
	lock.OnReleased(func() { go s.handleReleased(lock) })
}

// handleReleased 锁被释放。主动释放时 handle 已清空，这里只处理系统收回
func (s *Session) handleReleased(lock wakelock.Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != lock {
		return
	}
	s.handle = nil
	s.state = StateIdle
	if s.control.Checked() {
		logger.Info("唤醒锁被系统收回")
		s.revoked = true
		s.setStatus(StatusInactive)
	}
}

// takeHandle 取出当前锁交给 release，需持有 s.mu。
// 返回非空时 s.releasing 已加锁，release 负责解锁
func (s *Session) takeHandle() wakelock.Lock {
	if s.handle == nil {
		return nil
	}
	h := s.handle
	s.handle = nil
	if s.state == StateHeld {
		s.state = StateIdle
	}
	s.releasing.Lock()
	return h
}

// release 在 s.mu 之外释放 takeHandle 取出的锁
func (s *Session) release(h wakelock.Lock) {
	if h == nil {
		return
	}
	defer s.releasing.Unlock()
	h.Release()
	logger.Info("已释放唤醒锁")
}

// setStatus 需持有 s.mu
func (s *Session) setStatus(kind StatusKind) {
	s.status = kind
	s.sink.SetStatus(kind, s.texts.text(kind))
}
