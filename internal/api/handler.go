package api

import (
	"net/http"

	"cookmode/config"
	"cookmode/internal/model"
	"cookmode/pkg/logger"
	"cookmode/service/cookmode"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Handler struct {
	cfg      *config.Config
	session  *cookmode.Session
	toggle   *cookmode.Toggle
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(cfg *config.Config, session *cookmode.Session, toggle *cookmode.Toggle) *Handler {
	return &Handler{
		cfg:     cfg,
		session: session,
		toggle:  toggle,
	}
}

func (h *Handler) snapshot() model.CookModeStatus {
	kind, text := h.session.Status()
	return model.CookModeStatus{
		Checked:  h.toggle.Checked(),
		Disabled: h.toggle.Disabled(),
		State:    h.session.State().String(),
		Status:   string(kind),
		Text:     text,
	}
}

func (h *Handler) GetSettings(c *gin.Context) {
	d := h.cfg.Display
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data: model.Settings{
			Enabled:     d.Enabled,
			Position:    d.Position,
			Label:       d.Label,
			Description: d.Description,
			ToggleColor: d.ToggleColor,
		},
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    h.snapshot(),
	})
}

func (h *Handler) Toggle(c *gin.Context) {
	if !h.cfg.Display.Enabled {
		c.JSON(http.StatusNotFound, model.Response{
			Success: false,
			Error:   "烹饪模式开关未启用",
		})
		return
	}

	var req model.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Response{
			Success: false,
			Error:   "无效的请求: " + err.Error(),
		})
		return
	}

	if !h.toggle.Set(*req.Checked) {
		c.JSON(http.StatusConflict, model.Response{
			Success: false,
			Error:   "当前设备不支持烹饪模式",
			Data:    h.snapshot(),
		})
		return
	}
	logger.Debug("接口切换烹饪模式: %v", *req.Checked)

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    h.snapshot(),
	})
}

func (h *Handler) Visible(c *gin.Context) {
	h.session.HandleVisibilityRestored()
	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    h.snapshot(),
	})
}

func (h *Handler) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket 升级失败: %v", err)
		return
	}
	h.hub.serve(conn, h.snapshot())
}
