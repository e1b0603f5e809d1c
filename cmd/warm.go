package cmd

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var warmCmd = &cobra.Command{
	Use:   "warm [keys...]",
	Short: "Load assets through the cache and print its statistics",
	Long: `Reads every key through the configured cache, the way the server would,
and reports what the cache holds afterwards. Useful to check budgets and
source configuration before starting the server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.logger.Sync()

		svc, err := rt.service()
		if err != nil {
			return err
		}
		defer svc.Manager().Close()

		failed := 0
		for _, key := range args {
			data, etag, err := svc.Read(ctx, key)
			if err != nil {
				rt.logger.Error("Warm-up failed", zap.String("key", key), zap.Error(err))
				failed++
				continue
			}
			fmt.Printf("%-40s %10s  %s\n", key, units.BytesSize(float64(len(data))), etag)
		}

		s := svc.Stats()
		fmt.Println("-----------------------------")
		fmt.Printf("Manager:   %s (async=%v)\n", s.Name, s.Async)
		fmt.Printf("Resources: %d (%d loaded, %d pinned)\n", s.Resources, s.Loaded, s.Pinned)
		fmt.Printf("Used:      %s of %s\n", units.BytesSize(float64(s.Used)), units.BytesSize(float64(s.Budget)))
		if failed > 0 {
			return fmt.Errorf("%d of %d assets failed to load", failed, len(args))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(warmCmd)
}
