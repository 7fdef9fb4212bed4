package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stash/internal/core"
	"stash/internal/logger"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stash statistics",
	Long:  `Display item counts by status, processing progress, and your review streak.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStats(cmd); err != nil {
			logger.Error("Failed to get stats", err)
			os.Exit(1)
		}
	},
}

func runStats(cmd *cobra.Command) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	owner := a.owner(cmd)

	counts := map[core.Status]int{}
	grouped := 0
	for _, status := range []core.Status{core.StatusInbox, core.StatusCompleted, core.StatusArchived} {
		items, err := a.store.QueryByOwnerAndStatus(ctx, owner, status)
		if err != nil {
			return err
		}
		counts[status] = len(items)
		for _, item := range items {
			if item.IsGrouped {
				grouped++
			}
		}
	}

	report, err := a.pipeline.GetStatus(ctx, owner)
	if err != nil {
		return err
	}
	streak, err := a.pipeline.Streak(ctx, owner)
	if err != nil {
		return err
	}

	fmt.Println("Stash Statistics")
	fmt.Println("================")
	fmt.Printf("Inbox:      %d (%d ready, %d processing, %d waiting)\n",
		counts[core.StatusInbox], report.Ready, report.Processing, report.Scraped)
	fmt.Printf("Completed:  %d\n", counts[core.StatusCompleted])
	fmt.Printf("Archived:   %d\n", counts[core.StatusArchived])
	fmt.Printf("Group digests: %d\n", grouped)
	fmt.Printf("Review streak: %d day(s)\n", streak.Length)
	return nil
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
