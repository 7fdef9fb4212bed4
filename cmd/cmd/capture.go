package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stash/internal/logger"
	"stash/internal/pipeline"
)

var captureCmd = &cobra.Command{
	Use:   "capture [url]",
	Short: "Save a URL to your inbox",
	Long: `Capture a URL synchronously: the page is scraped, a category is
suggested, and the item lands in your inbox. No AI is involved and the
command works on every tier.

Example:
  stash capture https://example.com/article
  stash capture --category technology https://example.com/post`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		category, _ := cmd.Flags().GetString("category")
		kind, _ := cmd.Flags().GetString("kind")

		if err := runCapture(cmd, args[0], category, kind); err != nil {
			logger.Error("Failed to capture", err)
			os.Exit(1)
		}
	},
}

func runCapture(cmd *cobra.Command, url, category, kind string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	item, err := a.pipeline.Capture(ctx, a.owner(cmd), url, pipeline.CaptureOptions{
		Category: category,
		Kind:     kind,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Captured: %s\n", item.RawTitle)
	fmt.Printf("Category: %s\n", item.Category)
	fmt.Printf("ID:       %s\n", item.ID)
	return nil
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringP("category", "c", "", "explicit category (skips the classifier suggestion)")
	captureCmd.Flags().StringP("kind", "k", "", "source kind: link, video, social")
}
