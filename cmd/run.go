package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"cookmode/internal/api"
	"cookmode/pkg/crash"
	"cookmode/pkg/logger"
	"cookmode/pkg/singleinstance"
	"cookmode/service/cookmode"
	"cookmode/service/tray"
	"cookmode/service/visibility"

	"github.com/spf13/cobra"
)

var flagHeadless bool

func init() {
	runCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Run without the tray icon (HTTP API only)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the tray toggle and the local HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(); err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		defer logger.Close()

		reporter := crash.NewReporter("cookmode", filepath.Join(logger.GetLogPath(), "crash"), 5)
		defer reporter.Recover()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagHeadless && !cfg.API.Enabled {
			return fmt.Errorf("--headless 需要启用 api.enabled")
		}

		lock := singleinstance.New("cookmode")
		if err := lock.TryLock(cfg.Inhibitor.Backend); err != nil {
			return err
		}
		defer lock.Release()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		toggle := cookmode.NewToggle()
		var sinks cookmode.MultiSink

		var traySvc *tray.TrayService
		if !flagHeadless {
			traySvc = tray.NewTrayService(cfg, toggle)
			sinks = append(sinks, traySvc)
		}
		var hub *api.Hub
		if cfg.API.Enabled {
			hub = api.NewHub()
			sinks = append(sinks, hub)
		}

		session := cookmode.NewSession(newProvider(cfg), toggle, sinks, statusTexts(cfg))
		if session.Init() && !cfg.Display.Enabled {
			logger.Info("配置中已关闭烹饪模式开关")
			toggle.Disable()
		}
		defer func() {
			session.HandleUnload()
			logger.Info("烹饪模式已退出")
		}()

		monitor := visibility.NewMonitor(visibility.Restore(session))
		if err := monitor.Start(); err != nil {
			logger.Warn("启动可见性监听失败: %v", err)
		}
		defer monitor.Stop()

		var wg sync.WaitGroup
		if cfg.API.Enabled {
			server := api.NewServer(cfg, session, toggle, hub)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := server.Run(); err != nil {
					logger.Error("%v", err)
					stop()
				}
			}()
			defer func() {
				server.Close()
				wg.Wait()
			}()
		}

		if traySvc == nil {
			<-ctx.Done()
			logger.Info("收到退出信号")
			return nil
		}

		go func() {
			<-ctx.Done()
			traySvc.Stop()
		}()
		traySvc.OnQuit(stop)
		traySvc.Start()
		return nil
	},
}
