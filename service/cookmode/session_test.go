package cookmode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cookmode/service/wakelock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTexts = Texts{
	Active:   "Cook Mode Active",
	Inactive: "Cook Mode Inactive",
	Error:    "Cook Mode not supported on this device",
}

type fakeLock struct {
	mu        sync.Mutex
	released  bool
	releases  int
	callbacks []func()
	panics    bool
	block     chan struct{} // 非空时 Release 阻塞到关闭
}

func (l *fakeLock) Release() {
	l.mu.Lock()
	l.releases++
	l.mu.Unlock()
	if l.block != nil {
		<-l.block
	}
	if l.panics {
		panic("release failed")
	}
	l.fire()
}

// Revoke 模拟系统收回唤醒锁
func (l *fakeLock) Revoke() { l.fire() }

func (l *fakeLock) fire() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	callbacks := l.callbacks
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (l *fakeLock) OnReleased(fn func()) {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		fn()
		return
	}
	l.callbacks = append(l.callbacks, fn)
	l.mu.Unlock()
}

func (l *fakeLock) Releases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releases
}

type fakeProvider struct {
	supported bool
	gate      chan struct{} // 非空时 Request 阻塞到关闭
	slowFree  chan struct{} // 非空时锁的 Release 阻塞到关闭

	mu          sync.Mutex
	err         error
	locks       []*fakeLock
	panicOnFree bool
}

func (p *fakeProvider) Supported() bool { return p.supported }

func (p *fakeProvider) Request(ctx context.Context, kind wakelock.Kind) (wakelock.Lock, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	l := &fakeLock{panics: p.panicOnFree, block: p.slowFree}
	p.locks = append(p.locks, l)
	return l, nil
}

func (p *fakeProvider) Requests() []*fakeLock {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeLock(nil), p.locks...)
}

func (p *fakeProvider) SetErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type statusEntry struct {
	kind StatusKind
	text string
}

type recordingSink struct {
	mu      sync.Mutex
	history []statusEntry
}

func (r *recordingSink) SetStatus(kind StatusKind, text string) {
	r.mu.Lock()
	r.history = append(r.history, statusEntry{kind, text})
	r.mu.Unlock()
}

func (r *recordingSink) Last() statusEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return statusEntry{}
	}
	return r.history[len(r.history)-1]
}

func (r *recordingSink) Count(kind StatusKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.history {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func newTestSession(t *testing.T, provider *fakeProvider) (*Session, *Toggle, *recordingSink) {
	t.Helper()
	toggle := NewToggle()
	sink := &recordingSink{}
	s := NewSession(provider, toggle, sink, testTexts)
	t.Cleanup(s.HandleUnload)
	return s, toggle, sink
}

// assertSettled 检查稳定状态下的不变量：持有锁意味着开关已勾选
func assertSettled(t *testing.T, s *Session, toggle *Toggle) {
	t.Helper()
	s.Wait()
	if s.Held() {
		assert.True(t, toggle.Checked(), "持有唤醒锁时开关必须为勾选状态")
		assert.Equal(t, StateHeld, s.State())
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	provider := &fakeProvider{supported: false}
	s, toggle, sink := newTestSession(t, provider)

	assert.False(t, s.Init())
	assert.Equal(t, StateFailed, s.State())
	assert.True(t, toggle.Disabled())
	assert.Equal(t, statusEntry{StatusError, testTexts.Error}, sink.Last())
	assert.Contains(t, sink.Last().text, "not supported")

	// 禁用的开关不会触发 Enable
	assert.False(t, toggle.Set(true))
	s.Enable()
	s.Wait()
	assert.Empty(t, provider.Requests())
	assert.Equal(t, StateFailed, s.State())
}

func TestEnableAcquiresLock(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()

	assert.True(t, s.Held())
	assert.Equal(t, StateHeld, s.State())
	assert.Equal(t, statusEntry{StatusActive, testTexts.Active}, sink.Last())
	kind, text := s.Status()
	assert.Equal(t, StatusActive, kind)
	assert.Equal(t, testTexts.Active, text)
}

func TestEnableIsIdempotentWhileHeld(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()
	s.Enable()
	s.Wait()

	assert.Len(t, provider.Requests(), 1)
	assert.Equal(t, 2, sink.Count(StatusActive))
}

func TestDisableReleasesLock(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()
	toggle.Set(false)

	locks := provider.Requests()
	require.Len(t, locks, 1)
	assert.Equal(t, 1, locks[0].Releases())
	assert.False(t, s.Held())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, StatusHidden, sink.Last().kind)
}

func TestDisableWithoutLockIsSafe(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, _, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	s.Disable()
	s.Disable()

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, statusEntry{StatusHidden, ""}, sink.Last())
}

func TestAcquireFailureResetsControl(t *testing.T) {
	provider := &fakeProvider{supported: true, err: errors.New("NotAllowedError")}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()

	assert.False(t, toggle.Checked())
	assert.False(t, s.Held())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, statusEntry{StatusError, testTexts.Error}, sink.Last())

	// 会话仍然可用
	provider.SetErr(nil)
	toggle.Set(true)
	s.Wait()
	assert.True(t, s.Held())
	assert.Equal(t, StatusActive, sink.Last().kind)
}

func TestAcquireFailureAfterRevocation(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()
	provider.Requests()[0].Revoke()
	require.Eventually(t, func() bool { return !s.Held() }, time.Second, 5*time.Millisecond)

	provider.SetErr(wakelock.ErrAcquireFailed)
	s.HandleVisibilityRestored()
	s.Wait()

	assert.False(t, toggle.Checked())
	assert.Equal(t, StatusError, sink.Last().kind)
}

func TestPlatformReleaseShowsInactive(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()
	provider.Requests()[0].Revoke()

	require.Eventually(t, func() bool {
		return sink.Last().kind == StatusInactive
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, testTexts.Inactive, sink.Last().text)
	assert.False(t, s.Held())
	assert.True(t, toggle.Checked(), "系统收回锁不应改变开关状态")
	assert.Equal(t, StateIdle, s.State())
}

func TestVisibilityRestoredReacquires(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()
	provider.Requests()[0].Revoke()
	require.Eventually(t, func() bool { return !s.Held() }, time.Second, 5*time.Millisecond)

	s.HandleVisibilityRestored()
	s.Wait()

	assert.Len(t, provider.Requests(), 2)
	assert.True(t, s.Held())
	assert.Equal(t, StatusActive, sink.Last().kind)

	// 只重新获取一次
	s.HandleVisibilityRestored()
	s.Wait()
	assert.Len(t, provider.Requests(), 2)
}

func TestVisibilityRestoredIgnoredAfterUserDisable(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, _ := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()
	provider.Requests()[0].Revoke()
	require.Eventually(t, func() bool { return !s.Held() }, time.Second, 5*time.Millisecond)

	toggle.Set(false)
	s.HandleVisibilityRestored()
	s.Wait()

	assert.Len(t, provider.Requests(), 1)
	assert.False(t, s.Held())
}

func TestVisibilityRestoredWhileHeldIsNoop(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, _ := newTestSession(t, provider)
	require.True(t, s.Init())

	s.HandleVisibilityRestored()
	s.Wait()
	assert.Empty(t, provider.Requests())

	toggle.Set(true)
	s.Wait()
	s.HandleVisibilityRestored()
	s.Wait()
	assert.Len(t, provider.Requests(), 1)
}

func TestDisableDuringAcquireWins(t *testing.T) {
	provider := &fakeProvider{supported: true, gate: make(chan struct{})}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	assert.Equal(t, StateAcquiring, s.State())
	toggle.Set(false)
	close(provider.gate)
	s.Wait()

	locks := provider.Requests()
	require.Len(t, locks, 1)
	assert.Equal(t, 1, locks[0].Releases(), "返回的锁应立即释放")
	assert.False(t, s.Held())
	assert.Equal(t, StateIdle, s.State())
	assert.NotEqual(t, StatusActive, sink.Last().kind)
	assert.Equal(t, 0, sink.Count(StatusActive))
}

func TestLatestIntentWinsDuringAcquire(t *testing.T) {
	provider := &fakeProvider{supported: true, gate: make(chan struct{})}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	toggle.Set(false)
	toggle.Set(true)
	close(provider.gate)
	s.Wait()

	assert.Len(t, provider.Requests(), 1, "请求进行中不应重复请求")
	assert.True(t, s.Held())
	assert.Equal(t, StatusActive, sink.Last().kind)
	assertSettled(t, s, toggle)
}

func TestHeldImpliesCheckedAcrossToggles(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, _ := newTestSession(t, provider)
	require.True(t, s.Init())

	for i, checked := range []bool{true, false, true, false} {
		toggle.Set(checked)
		assertSettled(t, s, toggle)
		assert.Equal(t, checked, s.Held(), "step %d", i)
	}
	for _, l := range provider.Requests() {
		assert.Equal(t, 1, l.Releases())
	}
}

func TestUnloadReleasesLock(t *testing.T) {
	provider := &fakeProvider{supported: true}
	s, toggle, _ := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()
	s.HandleUnload()

	locks := provider.Requests()
	require.Len(t, locks, 1)
	assert.Equal(t, 1, locks[0].Releases())
	assert.False(t, s.Held())
	assert.Equal(t, StateIdle, s.State())

	// 卸载后不再响应
	s.Enable()
	s.Wait()
	assert.Len(t, provider.Requests(), 1)
}

func TestUnloadNeverPanics(t *testing.T) {
	provider := &fakeProvider{supported: true, panicOnFree: true}
	s, toggle, _ := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()

	assert.NotPanics(t, s.HandleUnload)
	assert.False(t, s.Held())
	assert.NotPanics(t, s.HandleUnload)
}

func TestUnloadDuringAcquireReleasesResult(t *testing.T) {
	provider := &fakeProvider{supported: true, gate: make(chan struct{})}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.HandleUnload()
	close(provider.gate)
	s.Wait()

	locks := provider.Requests()
	require.Len(t, locks, 1)
	assert.Equal(t, 1, locks[0].Releases())
	assert.False(t, s.Held())
	assert.Equal(t, 0, sink.Count(StatusError))
}

// lateUncheckControl 在取消勾选时插入一次用户重新勾选：
// 用户的勾选先生效，监听者还没执行，此时又收到一次取消勾选
type lateUncheckControl struct {
	*Toggle
	provider *fakeProvider
	once     sync.Once
	done     chan struct{}
}

func (c *lateUncheckControl) SetChecked(checked bool) {
	c.Toggle.SetChecked(checked)
	if checked {
		return
	}
	c.once.Do(func() {
		c.provider.SetErr(nil)
		go func() {
			defer close(c.done)
			c.Toggle.Set(true)
		}()
		deadline := time.Now().Add(time.Second)
		for !c.Toggle.Checked() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		c.Toggle.SetChecked(false)
	})
}

func TestReenableDuringFailureKeepsHeldImpliesChecked(t *testing.T) {
	provider := &fakeProvider{supported: true, err: errors.New("NotAllowedError")}
	toggle := NewToggle()
	control := &lateUncheckControl{Toggle: toggle, provider: provider, done: make(chan struct{})}
	sink := &recordingSink{}
	s := NewSession(provider, control, sink, testTexts)
	t.Cleanup(s.HandleUnload)
	require.True(t, s.Init())

	toggle.Set(true)
	select {
	case <-control.done:
	case <-time.After(2 * time.Second):
		t.Fatal("重新勾选没有完成")
	}
	assertSettled(t, s, toggle)

	assert.False(t, toggle.Checked())
	assert.False(t, s.Held())
	locks := provider.Requests()
	require.Len(t, locks, 1)
	assert.Equal(t, 1, locks[0].Releases(), "开关未勾选时返回的锁应立即释放")
}

func TestUncheckedDuringAcquireReleasesResult(t *testing.T) {
	provider := &fakeProvider{supported: true, gate: make(chan struct{})}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	toggle.SetChecked(false)
	close(provider.gate)
	assertSettled(t, s, toggle)

	assert.False(t, s.Held())
	locks := provider.Requests()
	require.Len(t, locks, 1)
	assert.Equal(t, 1, locks[0].Releases())
	assert.Equal(t, 0, sink.Count(StatusActive))
}

func TestDisableThenFailureDuringAcquire(t *testing.T) {
	provider := &fakeProvider{
		supported: true,
		gate:      make(chan struct{}),
		err:       errors.New("NotAllowedError"),
	}
	s, toggle, sink := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	toggle.Set(false)
	close(provider.gate)
	s.Wait()

	assert.False(t, toggle.Checked())
	assert.False(t, s.Held())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, statusEntry{StatusError, testTexts.Error}, sink.Last())
}

func TestSlowReleaseDoesNotBlockSession(t *testing.T) {
	provider := &fakeProvider{supported: true, slowFree: make(chan struct{})}
	s, toggle, _ := newTestSession(t, provider)
	require.True(t, s.Init())

	toggle.Set(true)
	s.Wait()
	first := provider.Requests()[0]

	disabled := make(chan struct{})
	go func() {
		defer close(disabled)
		toggle.Set(false)
	}()
	require.Eventually(t, func() bool { return first.Releases() == 1 }, time.Second, 5*time.Millisecond)

	// 释放进行中，状态查询不应等待
	status := make(chan StatusKind, 1)
	go func() {
		kind, _ := s.Status()
		status <- kind
	}()
	select {
	case kind := <-status:
		assert.Equal(t, StatusHidden, kind)
	case <-time.After(time.Second):
		t.Fatal("释放唤醒锁时会话被阻塞")
	}
	assert.Equal(t, StateIdle, s.State())

	// 旧锁释放完成前不请求新锁
	toggle.Set(true)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, provider.Requests(), 1)

	close(provider.slowFree)
	<-disabled
	s.Wait()
	assert.Len(t, provider.Requests(), 2)
	assert.True(t, s.Held())
	assertSettled(t, s, toggle)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "acquiring", StateAcquiring.String())
	assert.Equal(t, "held", StateHeld.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
