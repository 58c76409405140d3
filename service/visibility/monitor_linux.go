//go:build linux
// +build linux

package visibility

import (
	"sync"
	"time"

	"cookmode/pkg/logger"

	"github.com/godbus/dbus/v5"
)

const (
	signalPrepareForSleep = "org.freedesktop.login1.Manager.PrepareForSleep"
	signalSessionUnlock   = "org.freedesktop.login1.Session.Unlock"
	signalActiveChanged   = "org.freedesktop.ScreenSaver.ActiveChanged"
)

// linuxMonitor 监听 logind 与屏保的 D-Bus 信号，系统总线不可用时退回时钟检测
type linuxMonitor struct {
	handler Handler

	system         *dbus.Conn
	session        *dbus.Conn
	systemSignals  chan *dbus.Signal
	sessionSignals chan *dbus.Signal
	fallback       Monitor

	done     chan struct{}
	stopOnce sync.Once
}

func newPlatformMonitor(handler Handler) Monitor {
	return &linuxMonitor{
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start 启动监听
func (m *linuxMonitor) Start() error {
	system, err := dbus.ConnectSystemBus()
	if err != nil {
		logger.Warn("连接系统总线失败，使用时钟跳变检测: %v", err)
		m.fallback = newClockMonitor(m.handler)
		return m.fallback.Start()
	}
	m.system = system

	if err := system.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		logger.Error("订阅 PrepareForSleep 失败: %v", err)
	}
	if err := system.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.login1.Session"),
		dbus.WithMatchMember("Unlock"),
	); err != nil {
		logger.Error("订阅 Session.Unlock 失败: %v", err)
	}
	m.systemSignals = make(chan *dbus.Signal, 8)
	system.Signal(m.systemSignals)

	// 会话总线是可选的，无桌面环境时没有屏保信号
	if session, err := dbus.ConnectSessionBus(); err == nil {
		if err := session.AddMatchSignal(
			dbus.WithMatchInterface("org.freedesktop.ScreenSaver"),
			dbus.WithMatchMember("ActiveChanged"),
		); err != nil {
			logger.Debug("订阅 ScreenSaver.ActiveChanged 失败: %v", err)
		}
		m.session = session
		m.sessionSignals = make(chan *dbus.Signal, 8)
		session.Signal(m.sessionSignals)
	} else {
		logger.Debug("会话总线不可用: %v", err)
	}

	logger.Info("启动 D-Bus 可见性监听器")
	go m.loop()
	return nil
}

func (m *linuxMonitor) loop() {
	systemSignals, sessionSignals := m.systemSignals, m.sessionSignals
	for systemSignals != nil || sessionSignals != nil {
		var sig *dbus.Signal
		var ok bool
		select {
		case <-m.done:
			return
		case sig, ok = <-systemSignals:
			if !ok {
				systemSignals = nil
				continue
			}
		case sig, ok = <-sessionSignals:
			if !ok {
				sessionSignals = nil
				continue
			}
		}

		if event, matched := eventFromSignal(sig); matched {
			logger.Info("收到可见性事件 - 类型：%s，来源：%s", event.Type.String(), event.Source)
			m.handler.HandleVisibilityEvent(event)
		}
	}
}

// eventFromSignal 把 D-Bus 信号转换为可见性恢复事件
func eventFromSignal(sig *dbus.Signal) (Event, bool) {
	if sig == nil {
		return Event{}, false
	}
	event := Event{Source: sig.Name, Timestamp: time.Now()}
	switch sig.Name {
	case signalPrepareForSleep:
		// 参数为 false 表示睡眠结束
		if start, ok := firstBool(sig.Body); ok && !start {
			event.Type = EventTypeResumed
			return event, true
		}
	case signalSessionUnlock:
		event.Type = EventTypeUnlocked
		return event, true
	case signalActiveChanged:
		if active, ok := firstBool(sig.Body); ok && !active {
			event.Type = EventTypeScreenSaverEnded
			return event, true
		}
	}
	return Event{}, false
}

func firstBool(body []interface{}) (bool, bool) {
	if len(body) == 0 {
		return false, false
	}
	b, ok := body[0].(bool)
	return b, ok
}

// Stop 停止监听
func (m *linuxMonitor) Stop() error {
	m.stopOnce.Do(func() {
		close(m.done)
		if m.fallback != nil {
			m.fallback.Stop()
		}
		if m.session != nil {
			m.session.Close()
		}
		if m.system != nil {
			m.system.Close()
		}
	})
	return nil
}
