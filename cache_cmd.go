package main

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/outloud/internal/cache"
	"github.com/dgnsrekt/outloud/speech"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the synthesized-audio cache",
	Long: paragraph(
		fmt.Sprintf("\nRemote synthesis results are %s so repeated phrases are spoken without another network call. Inspect the cache or throw it away.", keyword("cached")),
	),
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and hit counters",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		store, dir, err := openCacheStore()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		stats := store.Stats()
		fmt.Println(keyword("Audio cache"), subtle(dir))
		fmt.Printf("  disk:    %s of %s in %d clips\n",
			humanize.Bytes(uint64(stats.Disk.Size)),     //nolint:gosec
			humanize.Bytes(uint64(stats.Disk.Capacity)), //nolint:gosec
			stats.Disk.ItemCount,
		)
		fmt.Printf("  hits:    %d disk, %d evictions\n", stats.Disk.Hits, stats.Disk.Evictions)
		if stats.Disk.Hits+stats.Disk.Misses > 0 {
			fmt.Printf("  hit rate: %.0f%%\n", stats.Disk.HitRate*100)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached clip",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		store, dir, err := openCacheStore()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		if err := store.Clear(); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		fmt.Println("Cleared audio cache at", dir)
		return nil
	},
}

// openCacheStore opens the same store the dispatcher would use, so the
// stats describe what speaking actually hits.
func openCacheStore() (*cache.Store, string, error) {
	dir := viper.GetString("cache_dir")
	if dir != "" {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, "", fmt.Errorf("unable to expand cache dir: %w", err)
		}
		dir = expanded
	} else {
		var err error
		dir, err = speech.DefaultCacheDir()
		if err != nil {
			return nil, "", err
		}
	}

	store, err := cache.Open(cache.DefaultOptions(dir))
	if err != nil {
		return nil, "", fmt.Errorf("unable to open cache: %w", err)
	}
	return store, dir, nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
