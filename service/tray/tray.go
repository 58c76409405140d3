package tray

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"cookmode/config"
	"cookmode/pkg/i18n"
	"cookmode/pkg/logger"
	"cookmode/service/cookmode"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
)

// TrayService 系统托盘上的烹饪模式开关和状态
type TrayService struct {
	cfg    *config.Config
	toggle *cookmode.Toggle

	app    fyne.App
	window *mainWindow
	desk   desktop.App
	onQuit func()

	mu         sync.Mutex
	status     cookmode.StatusKind
	statusText string
}

func NewTrayService(cfg *config.Config, toggle *cookmode.Toggle) *TrayService {
	s := &TrayService{
		cfg:    cfg,
		toggle: toggle,
		status: cookmode.StatusHidden,
	}
	toggle.Observe(s.refresh)
	return s
}

// SetStatus 实现 cookmode.StatusSink，只刷新托盘显示
func (s *TrayService) SetStatus(kind cookmode.StatusKind, text string) {
	s.mu.Lock()
	s.status = kind
	s.statusText = text
	s.mu.Unlock()
	s.refresh()
}

// OnQuit 注册退出回调，在托盘退出前调用
func (s *TrayService) OnQuit(fn func()) {
	s.onQuit = fn
}

func (s *TrayService) refresh() {
	if s.desk != nil {
		s.desk.SetSystemTrayMenu(s.createMenu())
		s.desk.SetSystemTrayIcon(s.icon())
	}
	if s.window != nil {
		s.window.update()
	}
}

func (s *TrayService) currentStatus() (cookmode.StatusKind, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusText
}

func (s *TrayService) icon() fyne.Resource {
	if kind, _ := s.currentStatus(); kind == cookmode.StatusActive {
		return theme.VisibilityIcon()
	}
	return theme.VisibilityOffIcon()
}

func (s *TrayService) createMenu() *fyne.Menu {
	checked := s.toggle.Checked()
	toggleItem := &fyne.MenuItem{
		Label:    s.cfg.Display.Label,
		Checked:  checked,
		Disabled: s.toggle.Disabled() || !s.cfg.Display.Enabled,
		Action: func() {
			s.toggle.Set(!s.toggle.Checked())
		},
	}

	kind, text := s.currentStatus()
	statusItem := &fyne.MenuItem{
		Label:    statusLabel(kind, text),
		Disabled: true,
	}

	inhibitorsItem := &fyne.MenuItem{
		Label:  i18n.T("menu.inhibitors"),
		Action: s.showInhibitors,
	}
	showItem := &fyne.MenuItem{
		Label:  i18n.T("menu.show"),
		Action: s.showWindow,
	}

	var items []*fyne.MenuItem
	if s.cfg.Display.Position == config.PositionBottom {
		items = append(items,
			statusItem,
			fyne.NewMenuItemSeparator(),
			showItem,
			inhibitorsItem,
			fyne.NewMenuItemSeparator(),
			toggleItem,
		)
	} else {
		items = append(items,
			toggleItem,
			statusItem,
			fyne.NewMenuItemSeparator(),
			showItem,
			inhibitorsItem,
		)
	}
	items = append(items,
		fyne.NewMenuItemSeparator(),
		&fyne.MenuItem{
			Label:  i18n.T("menu.quit"),
			IsQuit: true,
			Action: s.Stop,
		},
	)

	return fyne.NewMenu(i18n.T("app.name"), items...)
}

// statusLabel 托盘菜单中的状态行
func statusLabel(kind cookmode.StatusKind, text string) string {
	if kind == cookmode.StatusHidden || text == "" {
		return fmt.Sprintf("%s: %s", i18n.T("menu.status"), i18n.T("menu.status.off"))
	}
	return fmt.Sprintf("%s: %s", i18n.T("menu.status"), text)
}

// Start 创建托盘并运行界面循环，阻塞到退出
func (s *TrayService) Start() {
	s.app = app.NewWithID("com.cookmode.app")
	s.app.SetIcon(theme.VisibilityIcon())
	s.window = newMainWindow(s)

	var ok bool
	if s.desk, ok = s.app.(desktop.App); ok {
		s.desk.SetSystemTrayIcon(s.icon())
		s.desk.SetSystemTrayMenu(s.createMenu())
	} else {
		// 没有托盘时直接显示窗口
		logger.Warn("当前桌面不支持系统托盘")
		s.window.show()
	}

	s.app.Run()
}

// Stop 退出界面循环
func (s *TrayService) Stop() {
	if s.onQuit != nil {
		s.onQuit()
	}
	if s.app != nil {
		s.app.Quit()
	}
}

func (s *TrayService) showWindow() {
	if s.window != nil {
		s.window.show()
	}
}

// parseHexColor 解析 #rgb 或 #rrggbb 颜色
func parseHexColor(hex string) (color.NRGBA, error) {
	h := strings.TrimPrefix(hex, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("无效的颜色: %q", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("无效的颜色: %q", hex)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
