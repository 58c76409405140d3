package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"cookmode/pkg/logger"
	"cookmode/service/cookmode"
	"cookmode/service/visibility"

	"github.com/spf13/cobra"
)

var flagHoldFor time.Duration

func init() {
	holdCmd.Flags().DurationVar(&flagHoldFor, "for", 0, "Release after this duration (default: until interrupted)")
	rootCmd.AddCommand(holdCmd)
}

var holdCmd = &cobra.Command{
	Use:   "hold",
	Short: "Keep the screen on until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.InitWriter(cmd.ErrOrStderr())
		defer logger.Close()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		toggle := cookmode.NewToggle()
		sink := cookmode.StatusFunc(func(kind cookmode.StatusKind, text string) {
			if text != "" {
				fmt.Fprintln(out, text)
			}
		})
		session := cookmode.NewSession(newProvider(cfg), toggle, sink, statusTexts(cfg))
		if !session.Init() {
			return errors.New(statusTexts(cfg).Error)
		}
		defer session.HandleUnload()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if flagHoldFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, flagHoldFor)
			defer cancel()
		}

		toggle.Set(true)
		session.Wait()
		if !session.Held() {
			return errors.New(statusTexts(cfg).Error)
		}

		monitor := visibility.NewMonitor(visibility.Restore(session))
		if err := monitor.Start(); err != nil {
			logger.Warn("启动可见性监听失败: %v", err)
		}
		defer monitor.Stop()

		<-ctx.Done()
		toggle.Set(false)
		return nil
	},
}
