package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/researchwiseai/pulse-go/internal/store"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local result cache",
	}
	cmd.AddCommand(newCacheClearCmd(), newCachePruneCmd(), newCacheStatsCmd())
	return cmd
}

// openCache opens the cache selected by --redis-url or --cache-dir.
func openCache(ctx context.Context) (store.Cache, error) {
	switch {
	case cfg.RedisURL != "":
		return store.OpenRedisCache(ctx, cfg.RedisURL, store.DefaultRedisPrefix, redisTTL, logger)
	case cfg.CacheDir != "":
		return store.OpenCacheDir(ctx, cfg.CacheDir, logger)
	}
	return nil, errors.New("no cache configured: set --cache-dir or --redis-url")
}

// openDiskCache opens the on-disk cache; some maintenance only applies there.
func openDiskCache(ctx context.Context) (*store.SQLiteCache, error) {
	if cfg.CacheDir == "" {
		return nil, errors.New("no cache directory configured: set --cache-dir")
	}
	return store.OpenCacheDir(ctx, cfg.CacheDir, logger)
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		},
	}
}

func newCachePruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cached results not used recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openDiskCache(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("prune cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove entries unused for this long")
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openDiskCache(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Len(cmd.Context())
			if err != nil {
				return fmt.Errorf("count cache entries: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), map[string]any{"path": cfg.CacheDir, "entries": n})
		},
	}
}
