package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cookmode/config"
	"cookmode/pkg/logger"
	"cookmode/service/cookmode"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server 本地 HTTP 接口，供页面读取设置、切换开关并订阅状态
type Server struct {
	cfg     *config.Config
	handler *Handler
	hub     *Hub
	engine  *gin.Engine
	srv     *http.Server
}

// NewServer 创建接口服务并启动状态广播。hub 需要已经作为 sink 交给会话
func NewServer(cfg *config.Config, session *cookmode.Session, toggle *cookmode.Toggle, hub *Hub) *Server {
	gin.SetMode(gin.ReleaseMode)

	debug := strings.EqualFold(cfg.LogLevel, "debug")
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
		if debug {
			logger.Debug("%-6s %-25s --> %s (%d handlers)", httpMethod, absolutePath, handlerName, nuHandlers)
		}
	}

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/ws"},
		Output:    logWriter{},
		Formatter: func(param gin.LogFormatterParams) string {
			if debug || param.StatusCode >= 400 {
				return fmt.Sprintf("[GIN] %3d | %13v | %15s | %-7s %s %s",
					param.StatusCode,
					param.Latency,
					param.ClientIP,
					param.Method,
					param.Path,
					param.ErrorMessage,
				)
			}
			return ""
		},
	}))
	r.Use(gin.Recovery())

	handler := NewHandler(cfg, session, toggle)
	handler.upgrader = websocket.Upgrader{
		CheckOrigin:     originChecker(cfg.API.AllowedOrigins),
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	handler.hub = hub

	api := r.Group("/api")
	{
		api.GET("/settings", handler.GetSettings)
		api.GET("/status", handler.GetStatus)
		api.POST("/toggle", handler.Toggle)
		api.POST("/visible", handler.Visible)
		api.GET("/ws", handler.Subscribe)
	}

	// 开关的勾选状态由程序修改时也要推送
	toggle.Observe(hub.Notify)
	go hub.run(handler.snapshot)

	return &Server{
		cfg:     cfg,
		handler: handler,
		hub:     hub,
		engine:  r,
		srv: &http.Server{
			Addr:              cfg.API.Listen,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 开始监听，阻塞到服务关闭
func (s *Server) Run() error {
	logger.Info("HTTP 接口监听于 %s", s.cfg.API.Listen)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP 接口启动失败: %w", err)
	}
	return nil
}

// Close 断开 websocket 客户端并关闭服务
func (s *Server) Close() {
	s.hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		logger.Warn("关闭 HTTP 接口出错: %v", err)
	}
}

// originChecker 未配置来源时只允许同源
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return set[strings.ToLower(origin)]
	}
}

// logWriter 把 gin 的访问日志写入应用日志
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	if line := strings.TrimSpace(string(p)); line != "" {
		logger.Info("%s", line)
	}
	return len(p), nil
}
