package visibility

import "time"

// EventType 可见性事件类型
type EventType string

const (
	EventTypeResumed          EventType = "resumed"           // 系统从睡眠中恢复
	EventTypeUnlocked         EventType = "unlocked"          // 会话解锁
	EventTypeScreenSaverEnded EventType = "screensaver_ended" // 屏保结束
)

// Event 可见性恢复事件
type Event struct {
	Type      EventType // 事件类型
	Source    string    // 事件来源（D-Bus 信号名或检测方式）
	Timestamp time.Time // 事件发生时间
}

// String 返回事件类型的字符串表示
func (t EventType) String() string {
	switch t {
	case EventTypeResumed:
		return "系统恢复"
	case EventTypeUnlocked:
		return "会话解锁"
	case EventTypeScreenSaverEnded:
		return "屏保结束"
	default:
		return "未知事件"
	}
}

// Handler 可见性事件处理器
type Handler interface {
	HandleVisibilityEvent(event Event)
}

// HandlerFunc 函数形式的 Handler
type HandlerFunc func(event Event)

func (f HandlerFunc) HandleVisibilityEvent(event Event) { f(event) }

// Restorer 只关心“重新可见”的接收者，例如烹饪模式会话
type Restorer interface {
	HandleVisibilityRestored()
}

// Restore 把任意可见性事件转换为 HandleVisibilityRestored 调用
func Restore(r Restorer) Handler {
	return HandlerFunc(func(Event) { r.HandleVisibilityRestored() })
}

// Monitor 可见性事件监听器接口
type Monitor interface {
	Start() error
	Stop() error
}

// NewMonitor 创建平台特定的监听器
func NewMonitor(handler Handler) Monitor {
	return newPlatformMonitor(handler)
}
