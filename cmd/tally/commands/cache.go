package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show response cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			stats := client.CacheStats()
			if stats == nil {
				_, _ = os.Stdout.WriteString("Caching is disabled\n")

				return nil
			}

			return renderKeyValues(map[string]string{
				"hits":          fmt.Sprintf("%d", stats.Hits),
				"misses":        fmt.Sprintf("%d", stats.Misses),
				"sets":          fmt.Sprintf("%d", stats.Sets),
				"invalidations": fmt.Sprintf("%d", stats.Invalidations),
				"hit_rate":      fmt.Sprintf("%.2f%%", stats.GetHitRate()*100),
			})
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached response",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			err = client.ClearCache(context.Background())
			if err != nil {
				return err
			}

			_, _ = os.Stdout.WriteString("Cache cleared\n")

			return nil
		},
	}
}
