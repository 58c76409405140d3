package cmd

import (
	"fmt"

	"cookmode/config"
	"cookmode/pkg/i18n"
	"cookmode/pkg/logger"
	"cookmode/service/cookmode"
	"cookmode/service/wakelock"
)

// loadConfig 读取配置文件并应用命令行覆盖
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.Debug("已加载配置: %s", path)

	if err := i18n.Init(cfg.Language); err != nil {
		logger.Warn("初始化语言失败: %v", err)
	}
	return cfg, nil
}

// statusTexts 配置中的文本优先，留空时使用本地化文本
func statusTexts(cfg *config.Config) cookmode.Texts {
	texts := cookmode.Texts{
		Active:   cfg.Status.ActiveText,
		Inactive: cfg.Status.InactiveText,
		Error:    cfg.Status.ErrorText,
	}
	if texts.Active == "" {
		texts.Active = i18n.T("status.active")
	}
	if texts.Inactive == "" {
		texts.Inactive = i18n.T("status.inactive")
	}
	if texts.Error == "" {
		texts.Error = i18n.T("status.error")
	}
	return texts
}

func newProvider(cfg *config.Config) wakelock.Provider {
	return wakelock.NewProvider(wakelock.Options{
		Backend: cfg.Inhibitor.Backend,
		App:     "cookmode",
		Why:     cfg.Inhibitor.Why,
	})
}
