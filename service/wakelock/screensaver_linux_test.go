//go:build linux

package wakelock

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSessionBus 启动一个私有的 dbus-daemon，返回总线地址
func startSessionBus(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping D-Bus screensaver test in short mode")
	}
	if _, err := exec.LookPath("dbus-daemon"); err != nil {
		t.Skip("dbus-daemon not installed")
	}

	cmd := exec.Command("dbus-daemon", "--session", "--nofork", "--nopidfile", "--print-address=1")
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	addr, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSpace(addr)
}

// fakeScreenSaver 模拟桌面的 org.freedesktop.ScreenSaver 服务
type fakeScreenSaver struct {
	mu          sync.Mutex
	next        uint32
	active      map[uint32]string
	uninhibited []uint32
}

func (f *fakeScreenSaver) Inhibit(app, why string) (uint32, *dbus.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.active[f.next] = app + ": " + why
	return f.next, nil
}

func (f *fakeScreenSaver) UnInhibit(cookie uint32) *dbus.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, cookie)
	f.uninhibited = append(f.uninhibited, cookie)
	return nil
}

func (f *fakeScreenSaver) Active() map[uint32]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint32]string, len(f.active))
	for k, v := range f.active {
		out[k] = v
	}
	return out
}

func (f *fakeScreenSaver) Uninhibited() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.uninhibited...)
}

// serveScreenSaver 在总线上注册模拟服务
func serveScreenSaver(t *testing.T, addr string) (*fakeScreenSaver, *dbus.Conn) {
	t.Helper()
	conn, err := dbus.Connect(addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	svc := &fakeScreenSaver{active: make(map[uint32]string)}
	require.NoError(t, conn.Export(svc, screenSaverPath, screenSaverIface))

	reply, err := conn.RequestName(screenSaverName, dbus.NameFlagDoNotQueue)
	require.NoError(t, err)
	require.Equal(t, dbus.RequestNameReplyPrimaryOwner, reply)
	return svc, conn
}

func newTestScreenSaverProvider(addr string) *screenSaverProvider {
	p := newScreenSaverProvider("cookmode", "Cook Mode keeps the screen on")
	p.connect = func(ctx context.Context) (*dbus.Conn, error) {
		return dbus.Connect(addr, dbus.WithContext(ctx))
	}
	return p
}

func TestScreenSaverUnsupportedWithoutService(t *testing.T) {
	addr := startSessionBus(t)
	p := newTestScreenSaverProvider(addr)
	assert.False(t, p.Supported())
}

func TestScreenSaverInhibitAndRelease(t *testing.T) {
	addr := startSessionBus(t)
	svc, _ := serveScreenSaver(t, addr)
	p := newTestScreenSaverProvider(addr)
	require.True(t, p.Supported())

	lock, err := p.Request(context.Background(), KindScreen)
	require.NoError(t, err)
	cookie := lock.(*screenSaverLock).cookie
	assert.Equal(t, map[uint32]string{cookie: "cookmode: Cook Mode keeps the screen on"}, svc.Active())

	var released atomic.Int32
	lock.OnReleased(func() { released.Add(1) })

	lock.Release()
	require.Eventually(t, func() bool { return released.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []uint32{cookie}, svc.Uninhibited())
	assert.Empty(t, svc.Active())

	// 重复释放不再调用 UnInhibit
	lock.Release()
	assert.Len(t, svc.Uninhibited(), 1)
	assert.Equal(t, int32(1), released.Load())
}

func TestScreenSaverRevokedWhenServiceGoesAway(t *testing.T) {
	addr := startSessionBus(t)
	_, svcConn := serveScreenSaver(t, addr)
	p := newTestScreenSaverProvider(addr)

	lock, err := p.Request(context.Background(), KindScreen)
	require.NoError(t, err)

	var released atomic.Int32
	lock.OnReleased(func() { released.Add(1) })

	// 屏保服务退出，总线发出 NameOwnerChanged
	_, err = svcConn.ReleaseName(screenSaverName)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return released.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// 已被收回的锁可以安全释放
	assert.NotPanics(t, lock.Release)
	assert.Equal(t, int32(1), released.Load())
}

func TestScreenSaverRequestFailsWhenBusUnavailable(t *testing.T) {
	p := newTestScreenSaverProvider("unix:path=/nonexistent/cookmode-bus")
	assert.False(t, p.Supported())

	_, err := p.Request(context.Background(), KindScreen)
	assert.ErrorIs(t, err, ErrAcquireFailed)
}
