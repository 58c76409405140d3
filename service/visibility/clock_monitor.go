package visibility

import (
	"sync"
	"time"

	"cookmode/pkg/logger"
)

const (
	// ClockCheckInterval 时钟检查间隔
	ClockCheckInterval = 5 * time.Second
	// ClockJumpThreshold 两次检查的实际间隔超过检查间隔这么多时，认为系统睡眠过
	ClockJumpThreshold = 10 * time.Second
)

// clockMonitor 通过墙上时钟跳变检测系统从睡眠中恢复，没有系统信号可用时使用
type clockMonitor struct {
	handler   Handler
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

func newClockMonitor(handler Handler) *clockMonitor {
	return &clockMonitor{
		handler:   handler,
		interval:  ClockCheckInterval,
		threshold: ClockJumpThreshold,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start 启动监听
func (m *clockMonitor) Start() error {
	logger.Info("启动时钟跳变监听器，每 %v 检查一次", m.interval)
	ticker := time.NewTicker(m.interval)
	go func() {
		defer ticker.Stop()
		m.run(ticker.C)
	}()
	return nil
}

func (m *clockMonitor) run(ticks <-chan time.Time) {
	// Round(0) 去掉单调时钟读数，睡眠期间单调时钟可能不前进
	last := m.now().Round(0)
	for {
		select {
		case <-m.done:
			return
		case <-ticks:
			current := m.now().Round(0)
			if gap := current.Sub(last); gap > m.interval+m.threshold {
				logger.Info("检测到时钟跳变 %v，系统可能刚从睡眠中恢复", gap)
				m.handler.HandleVisibilityEvent(Event{
					Type:      EventTypeResumed,
					Source:    "clock",
					Timestamp: current,
				})
			}
			last = current
		}
	}
}

// Stop 停止监听
func (m *clockMonitor) Stop() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}
