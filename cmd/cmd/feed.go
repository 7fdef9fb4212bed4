package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stash/internal/config"
	"stash/internal/feeds"
	"stash/internal/logger"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Work with RSS/Atom feeds",
}

var feedPullCmd = &cobra.Command{
	Use:   "pull [feed-url]",
	Short: "Capture new entries from a feed",
	Long: `Fetch an RSS/Atom feed and capture its entries. Entries already
seen within the retention window are silently skipped, so repeated pulls
never duplicate items.

Example:
  stash feed pull https://blog.example.com/rss`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runFeedPull(cmd, args[0]); err != nil {
			logger.Error("Failed to pull feed", err)
			os.Exit(1)
		}
	},
}

func runFeedPull(cmd *cobra.Command, feedURL string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	fetcher := feeds.NewFetcher(config.Duration(a.cfg.Scrape.Timeout, 0), a.cfg.Scrape.UserAgent)

	fetched, err := fetcher.Fetch(ctx, feedURL, "", "")
	if err != nil {
		return err
	}
	if fetched.NotModified {
		fmt.Println("Feed not modified.")
		return nil
	}

	fmt.Printf("Feed: %s (%d entries)\n", fetched.Title, len(fetched.Entries))

	captured, skipped := 0, 0
	owner := a.owner(cmd)
	for _, entry := range fetched.Entries {
		item, ok, err := a.pipeline.CaptureFromFeed(ctx, owner, entry)
		if err != nil {
			logger.Warn("failed to capture feed entry", "link", entry.Link, "error", err)
			continue
		}
		if !ok {
			skipped++
			continue
		}
		captured++
		fmt.Printf("  + %s\n", item.RawTitle)
	}

	fmt.Printf("Captured %d new entries, skipped %d duplicates.\n", captured, skipped)
	return nil
}

var dedupSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired dedup records",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := buildApp(false)
		if err != nil {
			logger.Error("Failed to open store", err)
			os.Exit(1)
		}
		defer a.Close()

		if err := a.pipeline.SweepDedup(context.Background()); err != nil {
			logger.Error("Failed to sweep dedup records", err)
			os.Exit(1)
		}
		fmt.Println("Dedup records swept.")
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.AddCommand(feedPullCmd)
	feedCmd.AddCommand(dedupSweepCmd)
}
