package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stash/internal/classify"
	"stash/internal/config"
	"stash/internal/dedup"
	"stash/internal/dispatch"
	"stash/internal/entitlement"
	"stash/internal/llm"
	"stash/internal/pipeline"
	"stash/internal/scrape"
	"stash/internal/store"
	"stash/internal/summarize"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stash",
	Short: "Stash captures content for later and turns it into AI digests",
	Long: `Stash saves links, videos, and social posts into an inbox, then
classifies, groups, and summarizes them into reviewable digests.

Capture is always free and instant; AI processing runs in the background
when you ask for it.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .stash.yaml or $HOME/.stash.yaml)")
	rootCmd.PersistentFlags().String("owner", "", "owner id for this invocation (default from config)")
}

// initConfig reads the config file and environment variables.
func initConfig() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stash")
	}

	viper.SetEnvPrefix("STASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// app bundles the wired application for one command invocation.
type app struct {
	cfg      *config.Config
	store    store.Store
	pipeline *pipeline.Pipeline
	workers  *dispatch.Local
}

// owner resolves the effective owner id for a command.
func (a *app) owner(cmd *cobra.Command) string {
	if flag, _ := cmd.Flags().GetString("owner"); flag != "" {
		return flag
	}
	return a.cfg.App.Owner
}

// Close drains background work and releases the store.
func (a *app) Close() {
	a.workers.Wait()
	_ = a.store.Close()
}

// buildApp wires the full pipeline. withAI controls whether a Gemini
// client is required; capture-only commands work without an API key.
func buildApp(withAI bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	s, err := store.NewSQLite(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var digester pipeline.Digester
	if withAI {
		client, err := llm.NewClient(cfg.AI.Model)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts := summarize.DefaultOptions()
		opts.MaxRetries = cfg.AI.MaxRetries
		opts.RetryDelay = config.Duration(cfg.AI.RetryDelay, opts.RetryDelay)
		digester = summarize.New(client, opts)
	}

	taxonomy := classify.NewTaxonomy(cfg.Classify.Categories, cfg.Classify.Keywords)
	scraper := scrape.New(config.Duration(cfg.Scrape.Timeout, 0), cfg.Scrape.UserAgent)
	ledger := dedup.NewLedger(s, config.Duration(cfg.Dedup.Retention, dedup.DefaultRetention))
	ent := entitlement.NewConfigSource(cfg.Entitlement)

	p := pipeline.New(s, scraper, taxonomy, digester, ledger, ent)
	workers := dispatch.NewLocal(p.HandleWork, cfg.Dispatch.MaxConcurrent)
	p.SetDispatcher(workers)

	return &app{cfg: cfg, store: s, pipeline: p, workers: workers}, nil
}
