package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stash/internal/logger"
	"stash/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process [item-id...]",
	Short: "Run AI digestion over your unprocessed inbox items",
	Long: `Classify and group everything captured since the last run, then
summarize each item in the background. Items sharing a category are
synthesized into one combined digest. Pass item ids to process only those
items. Requires a tier with AI access.

Example:
  stash process
  stash process --wait=false`,
	Run: func(cmd *cobra.Command, args []string) {
		wait, _ := cmd.Flags().GetBool("wait")
		if err := runProcess(cmd, wait, args); err != nil {
			logger.Error("Failed to process", err)
			os.Exit(1)
		}
	},
}

func runProcess(cmd *cobra.Command, wait bool, ids []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	receipt, err := a.pipeline.RequestProcessing(context.Background(), a.owner(cmd), ids...)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotEntitled) {
			return fmt.Errorf("your tier does not include AI processing; capture remains free")
		}
		return err
	}

	if receipt.ItemCount == 0 {
		fmt.Println("Nothing to process.")
		return nil
	}

	fmt.Printf("Scheduled %d items (%d groups) for digestion.\n", receipt.ItemCount, receipt.GroupCount)
	if wait {
		fmt.Println("Waiting for digests...")
		a.workers.Wait()
		fmt.Println("Done. Run 'stash status' to review.")
	} else {
		fmt.Println("Run 'stash status' to check progress.")
	}
	return nil
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess [item-id]",
	Short: "Re-dispatch a stuck item",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runReprocess(cmd, args[0]); err != nil {
			logger.Error("Failed to reprocess", err)
			os.Exit(1)
		}
	},
}

func runReprocess(cmd *cobra.Command, id string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.Reprocess(context.Background(), a.owner(cmd), id); err != nil {
		return err
	}
	a.workers.Wait()
	fmt.Println("Item reprocessed.")
	return nil
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(reprocessCmd)
	processCmd.Flags().Bool("wait", true, "wait for background digestion to finish before exiting")
}
