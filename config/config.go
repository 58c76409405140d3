package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const (
	// 默认配置值
	DefaultPosition    = "top"
	DefaultLabel       = "Cook Mode"
	DefaultDescription = "Prevent screen from turning off"
	DefaultToggleColor = "#2271b1"
	DefaultBackend     = "auto"
	DefaultWhy         = "Cook Mode keeps the screen on"
	DefaultListen      = "127.0.0.1:8089"
	DefaultLogLevel    = "info"
)

const (
	PositionTop    = "top"
	PositionBottom = "bottom"
)

var hexColorRe = regexp.MustCompile(`^#([A-Fa-f0-9]{3}){1,2}$`)

// Config 配置结构
type Config struct {
	Display   Display   `yaml:"display"`   // 开关的展示设置
	Status    Status    `yaml:"status"`    // 状态文本，留空使用本地化默认值
	Inhibitor Inhibitor `yaml:"inhibitor"` // 平台唤醒锁相关配置
	API       API       `yaml:"api"`       // 本地 HTTP 接口
	LogLevel  string    `yaml:"log_level"` // 日志级别
	Language  string    `yaml:"language"`  // 界面语言，留空自动检测
}

// Display 开关的展示设置
type Display struct {
	Enabled     bool   `yaml:"enabled"`      // 是否提供开关
	Position    string `yaml:"position"`     // top 或 bottom
	Label       string `yaml:"label"`        // 开关标签
	Description string `yaml:"description"`  // 开关说明
	ToggleColor string `yaml:"toggle_color"` // 开启状态的颜色
}

// Status 状态文本
type Status struct {
	ActiveText   string `yaml:"active_text"`
	InactiveText string `yaml:"inactive_text"`
	ErrorText    string `yaml:"error_text"`
}

// Inhibitor 平台唤醒锁配置
type Inhibitor struct {
	Backend string `yaml:"backend"` // auto, systemd, dbus, caffeinate, windows
	Why     string `yaml:"why"`     // 提交给系统的阻止原因
}

// API 本地接口配置
type API struct {
	Enabled        bool     `yaml:"enabled"`
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"` // websocket 允许的来源，为空时只允许同源
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Display: Display{
			Enabled:     true,
			Position:    DefaultPosition,
			Label:       DefaultLabel,
			Description: DefaultDescription,
			ToggleColor: DefaultToggleColor,
		},
		Inhibitor: Inhibitor{
			Backend: DefaultBackend,
			Why:     DefaultWhy,
		},
		API: API{
			Listen: DefaultListen,
		},
		LogLevel: DefaultLogLevel,
	}
}

// LoadConfig 从文件加载配置，文件不存在时写入默认配置
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, err
		}
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 先填默认值，文件中未出现的字段保持默认
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = GetConfigPath()
	}

	// 确保配置目录存在
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(configDir, "cookmode", "config.yaml")
}

// Sanitize 规范化配置，非法值回退为默认值
func (c *Config) Sanitize() {
	if c.Display.Position != PositionTop && c.Display.Position != PositionBottom {
		c.Display.Position = DefaultPosition
	}
	c.Display.Label = sanitizeText(c.Display.Label)
	if c.Display.Label == "" {
		c.Display.Label = DefaultLabel
	}
	c.Display.Description = sanitizeText(c.Display.Description)
	if !hexColorRe.MatchString(c.Display.ToggleColor) {
		c.Display.ToggleColor = DefaultToggleColor
	}

	c.Status.ActiveText = sanitizeText(c.Status.ActiveText)
	c.Status.InactiveText = sanitizeText(c.Status.InactiveText)
	c.Status.ErrorText = sanitizeText(c.Status.ErrorText)

	switch c.Inhibitor.Backend {
	case "auto", "systemd", "dbus", "caffeinate", "windows":
	default:
		c.Inhibitor.Backend = DefaultBackend
	}
	if strings.TrimSpace(c.Inhibitor.Why) == "" {
		c.Inhibitor.Why = DefaultWhy
	}
	if c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// sanitizeText 去掉控制字符和首尾空白，并把连续空白压缩为一个空格
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
