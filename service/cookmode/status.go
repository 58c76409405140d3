package cookmode

import "sync"

// StatusKind 状态显示类型
type StatusKind string

const (
	StatusInactive StatusKind = "inactive" // 用户希望开启，但锁已被系统收回
	StatusActive   StatusKind = "active"   // 持有唤醒锁
	StatusError    StatusKind = "error"    // 不支持或获取失败
	StatusHidden   StatusKind = "hidden"   // 不显示状态
)

// Texts 状态文本
type Texts struct {
	Active   string
	Inactive string
	Error    string
}

// text 返回状态对应的文本
func (t Texts) text(kind StatusKind) string {
	switch kind {
	case StatusActive:
		return t.Active
	case StatusInactive:
		return t.Inactive
	case StatusError:
		return t.Error
	default:
		return ""
	}
}

// StatusSink 状态显示。会话在内部锁中调用 SetStatus，实现不能同步回调 Session
type StatusSink interface {
	SetStatus(kind StatusKind, text string)
}

// StatusFunc 函数形式的 StatusSink
type StatusFunc func(kind StatusKind, text string)

func (f StatusFunc) SetStatus(kind StatusKind, text string) { f(kind, text) }

// MultiSink 把状态同时发给多个显示端
type MultiSink []StatusSink

func (m MultiSink) SetStatus(kind StatusKind, text string) {
	for _, s := range m {
		s.SetStatus(kind, text)
	}
}

// Control 用户可操作的开关
type Control interface {
	// Checked 当前是否勾选
	Checked() bool
	// SetChecked 由程序修改勾选状态，不触发 OnChange
	SetChecked(checked bool)
	// Disable 永久禁用开关
	Disable()
	// OnChange 注册用户操作回调
	OnChange(fn func(checked bool))
}

// Toggle 线程安全的开关模型，托盘菜单和 HTTP 接口共用
type Toggle struct {
	mu        sync.Mutex
	checked   bool
	disabled  bool
	listeners []func(checked bool)
	observers []func()
}

// NewToggle 创建未勾选的开关
func NewToggle() *Toggle {
	return &Toggle{}
}

func (t *Toggle) Checked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checked
}

// Disabled 开关是否已被禁用
func (t *Toggle) Disabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disabled
}

func (t *Toggle) SetChecked(checked bool) {
	t.mu.Lock()
	changed := t.checked != checked
	t.checked = checked
	observers := t.observers
	t.mu.Unlock()

	if changed {
		notify(observers)
	}
}

func (t *Toggle) Disable() {
	t.mu.Lock()
	t.disabled = true
	observers := t.observers
	t.mu.Unlock()

	notify(observers)
}

func (t *Toggle) OnChange(fn func(checked bool)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Observe 注册显示刷新回调，任何状态变化（包括程序修改）都会触发
func (t *Toggle) Observe(fn func()) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Set 模拟用户操作：更新勾选状态并通知 OnChange 监听者。
// 禁用状态下忽略，返回是否生效
func (t *Toggle) Set(checked bool) bool {
	t.mu.Lock()
	if t.disabled {
		t.mu.Unlock()
		return false
	}
	changed := t.checked != checked
	t.checked = checked
	listeners := t.listeners
	observers := t.observers
	t.mu.Unlock()

	if changed {
		notify(observers)
	}
	for _, fn := range listeners {
		fn(checked)
	}
	return true
}

func notify(observers []func()) {
	for _, fn := range observers {
		fn()
	}
}
