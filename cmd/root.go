package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "cookmode",
	Short: "Cook Mode keeps the screen on while you follow a recipe",
	Long: `Cook Mode holds a screen wake lock while the toggle is on, so the display
does not dim or lock while your hands are busy.

The lock is released when the toggle is turned off or the program exits. If the
system takes the lock back while the toggle is on, it is acquired again when the
session becomes visible (resume, unlock or screensaver end).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
