//go:build linux
// +build linux

package wakelock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cookmode/pkg/logger"

	"github.com/godbus/dbus/v5"
)

const (
	screenSaverName  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	screenSaverIface = "org.freedesktop.ScreenSaver"
)

// screenSaverProvider 通过会话总线上的 org.freedesktop.ScreenSaver 阻止屏幕熄灭
type screenSaverProvider struct {
	app     string
	why     string
	connect func(ctx context.Context) (*dbus.Conn, error)
}

func newScreenSaverProvider(app, why string) *screenSaverProvider {
	return &screenSaverProvider{
		app: app,
		why: why,
		connect: func(ctx context.Context) (*dbus.Conn, error) {
			return dbus.ConnectSessionBus(dbus.WithContext(ctx))
		},
	}
}

func (p *screenSaverProvider) Supported() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := p.connect(ctx)
	if err != nil {
		logger.Debug("会话总线不可用: %v", err)
		return false
	}
	defer conn.Close()

	var hasOwner bool
	err = conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, screenSaverName).Store(&hasOwner)
	if err != nil {
		logger.Debug("查询 %s 失败: %v", screenSaverName, err)
		return false
	}
	return hasOwner
}

func (p *screenSaverProvider) Request(ctx context.Context, kind Kind) (Lock, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	// 每个锁使用独立连接，连接断开时系统会自动撤销抑制
	conn, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: 连接会话总线失败: %v", ErrAcquireFailed, err)
	}

	obj := conn.Object(screenSaverName, screenSaverPath)
	var cookie uint32
	if err := obj.CallWithContext(ctx, screenSaverIface+".Inhibit", 0, p.app, p.why).Store(&cookie); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrAcquireFailed, err)
	}

	// 屏保服务重启时旧的抑制失效
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, screenSaverName),
	); err != nil {
		logger.Warn("订阅 NameOwnerChanged 失败: %v", err)
	}

	l := &screenSaverLock{
		conn:    conn,
		obj:     obj,
		cookie:  cookie,
		signals: make(chan *dbus.Signal, 4),
	}
	conn.Signal(l.signals)
	go l.watch()

	logger.Info("通过 %s 获取唤醒锁成功，cookie: %d", screenSaverName, cookie)
	return l, nil
}

type screenSaverLock struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	cookie  uint32
	signals chan *dbus.Signal

	releaseOnce sync.Once

	releaseNotifier
}

func (l *screenSaverLock) watch() {
	for sig := range l.signals {
		if sig.Name == "org.freedesktop.DBus.NameOwnerChanged" {
			logger.Info("屏保服务已变更，唤醒锁被系统收回")
			l.conn.Close()
			break
		}
	}
	l.fire()
}

func (l *screenSaverLock) Release() {
	l.releaseOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if call := l.obj.CallWithContext(ctx, screenSaverIface+".UnInhibit", 0, l.cookie); call.Err != nil {
			logger.Debug("UnInhibit 失败，关闭连接释放: %v", call.Err)
		}
		// 关闭连接会结束 watch 并触发回调
		if err := l.conn.Close(); err != nil {
			logger.Debug("关闭会话总线连接失败: %v", err)
		}
		logger.Info("释放唤醒锁成功，cookie: %d", l.cookie)
	})
}
