package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stash/internal/logger"
)

var reviewCmd = &cobra.Command{
	Use:   "review [item-id]",
	Short: "Mark an item as reviewed",
	Long: `Record a review: the item moves out of the inbox, its review count
grows, and its priority decays so unreviewed items surface first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runReview(cmd, args[0]); err != nil {
			logger.Error("Failed to mark reviewed", err)
			os.Exit(1)
		}
	},
}

func runReview(cmd *cobra.Command, id string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	item, err := a.pipeline.MarkReviewed(context.Background(), a.owner(cmd), id)
	if err != nil {
		return err
	}

	fmt.Printf("Reviewed: %s (%d reviews, priority %.2f)\n",
		item.Title, item.TimesReviewed, item.PriorityScore)
	return nil
}

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show your consecutive-day review streak",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStreak(cmd); err != nil {
			logger.Error("Failed to compute streak", err)
			os.Exit(1)
		}
	},
}

func runStreak(cmd *cobra.Command) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.Streak(context.Background(), a.owner(cmd))
	if err != nil {
		return err
	}

	if result.Length == 0 {
		fmt.Println("No active streak. Review something today to start one.")
		return nil
	}
	fmt.Printf("Current streak: %d day(s)\n", result.Length)
	fmt.Printf("Last active: %s\n", result.LastActive.Format("2006-01-02"))
	return nil
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(streakCmd)
}
