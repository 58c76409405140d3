package tray

import (
	"fmt"
	"image/color"

	"cookmode/config"
	"cookmode/pkg/i18n"
	"cookmode/pkg/logger"
	"cookmode/pkg/system"
	"cookmode/service/cookmode"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// mainWindow 带说明文字的开关窗口，默认隐藏
type mainWindow struct {
	tray      *TrayService
	win       fyne.Window
	check     *widget.Check
	status    *widget.Label
	indicator *canvas.Rectangle
	active    color.Color
}

func newMainWindow(s *TrayService) *mainWindow {
	d := s.cfg.Display
	m := &mainWindow{tray: s}

	active, err := parseHexColor(d.ToggleColor)
	if err != nil {
		logger.Warn("开关颜色无效，使用默认值: %v", err)
		active, _ = parseHexColor(config.DefaultToggleColor)
	}
	m.active = active

	m.win = s.app.NewWindow(i18n.T("app.name"))
	m.check = widget.NewCheck(d.Label, func(checked bool) {
		// update 同步显示时也会触发，只处理用户的实际变化
		if checked != s.toggle.Checked() {
			s.toggle.Set(checked)
		}
	})
	m.status = widget.NewLabel("")
	m.indicator = canvas.NewRectangle(color.Transparent)
	m.indicator.SetMinSize(fyne.NewSize(6, 0))

	toggleRow := container.NewBorder(nil, nil, m.indicator, nil,
		container.NewVBox(m.check, widget.NewLabel(d.Description)))

	var content fyne.CanvasObject
	if d.Position == config.PositionBottom {
		content = container.NewBorder(nil, toggleRow, nil, nil, m.status)
	} else {
		content = container.NewBorder(toggleRow, nil, nil, nil, m.status)
	}
	if !d.Enabled {
		content = m.status
	}

	m.win.SetContent(content)
	m.win.Resize(fyne.NewSize(320, 140))
	m.win.SetCloseIntercept(func() {
		m.win.Hide()
	})
	m.update()
	return m
}

func (m *mainWindow) update() {
	s := m.tray
	m.check.SetChecked(s.toggle.Checked())
	if s.toggle.Disabled() {
		m.check.Disable()
	}

	kind, text := s.currentStatus()
	m.status.SetText(statusLabel(kind, text))
	if kind == cookmode.StatusActive {
		m.indicator.FillColor = m.active
	} else {
		m.indicator.FillColor = color.Transparent
	}
	m.indicator.Refresh()
}

func (m *mainWindow) show() {
	m.win.Show()
	m.win.RequestFocus()
}

// showInhibitors 显示当前阻止休眠的进程
func (s *TrayService) showInhibitors() {
	if s.app == nil {
		return
	}
	w := s.app.NewWindow(i18n.T("inhibitors.title"))
	w.Resize(fyne.NewSize(640, 360))

	var rows []string
	list := widget.NewList(
		func() int { return len(rows) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(rows[id])
		},
	)
	summary := widget.NewLabel("")

	load := func() {
		inhibitors, err := system.ListInhibitors()
		if err != nil {
			logger.Error("获取阻止休眠的进程失败: %v", err)
			rows = nil
			summary.SetText(err.Error())
			list.Refresh()
			return
		}
		rows = formatInhibitors(inhibitors)
		if len(rows) == 0 {
			summary.SetText(i18n.T("inhibitors.empty"))
		} else {
			summary.SetText(fmt.Sprintf("%s (%d)", i18n.T("inhibitors.title"), len(rows)))
		}
		list.Refresh()
	}

	refresh := widget.NewButton(i18n.T("inhibitors.refresh"), load)
	w.SetContent(container.NewBorder(summary, refresh, nil, nil, list))
	load()
	w.Show()
}

// formatInhibitors 每个进程一行
func formatInhibitors(inhibitors []system.Inhibitor) []string {
	rows := make([]string, 0, len(inhibitors))
	for _, inh := range inhibitors {
		name := inh.Name
		if name == "" {
			name = inh.Who
		}
		row := fmt.Sprintf("%s (PID %d) - %s", name, inh.PID, inh.Description())
		if inh.Why != "" {
			row += ": " + inh.Why
		}
		rows = append(rows, row)
	}
	return rows
}
