package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stash/internal/core"
	"stash/internal/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show your inbox and processing progress",
	Long: `List inbox items with their processing state. Ready items show
their digests even while siblings are still processing.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStatus(cmd); err != nil {
			logger.Error("Failed to get status", err)
			os.Exit(1)
		}
	},
}

func runStatus(cmd *cobra.Command) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.pipeline.GetStatus(context.Background(), a.owner(cmd))
	if err != nil {
		return err
	}

	if len(report.Items) == 0 {
		fmt.Println("Inbox is empty. Capture something with 'stash capture <url>'.")
		return nil
	}

	fmt.Printf("Inbox: %d items (%d ready, %d processing, %d waiting)\n\n",
		len(report.Items), report.Ready, report.Processing, report.Scraped)

	for _, item := range report.Items {
		printItem(item)
	}
	return nil
}

func printItem(item *core.ContentItem) {
	marker := map[core.ProcessingState]string{
		core.StateScraped:    "[waiting]",
		core.StateProcessing: "[processing]",
		core.StateReady:      "[ready]",
	}[item.ProcessingState]

	title := item.Title
	if title == "" {
		title = item.RawTitle
	}

	fmt.Printf("%s %s\n", marker, title)
	fmt.Printf("  id: %s  category: %s  priority: %.2f\n", item.ID, item.Category, item.PriorityScore)
	if item.IsGrouped {
		fmt.Printf("  combined from %d sources\n", len(item.SourceItemIDs))
	}
	if item.ProcessingState == core.StateReady && item.Summary != "" {
		fmt.Printf("  %s\n", item.Summary)
		for _, kp := range item.KeyPoints {
			fmt.Printf("   - %s\n", kp)
		}
		if item.Question != "" {
			fmt.Printf("  ? %s\n", item.Question)
		}
		if item.DigestFallback {
			fmt.Printf("  (automatic summary unavailable, showing saved content)\n")
		}
	}
	fmt.Println(strings.Repeat("-", 40))
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
