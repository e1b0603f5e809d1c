package cmd

import (
	"context"
	"fmt"
	"os"

	"asset-streamer/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "asset-streamer",
	Short: "Asset Streaming Service",
	Long: `Asset Streamer serves assets from object storage or a local directory
through an in-memory cache with a byte budget and generation-based eviction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		// Console encoding at debug level gives readable timestamps for CLI errors.
		l, logErr := logger.New(&logger.Config{Level: "debug", Format: "console"})
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
