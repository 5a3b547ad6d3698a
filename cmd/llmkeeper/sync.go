package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/llmkeeper/llmkeeper/pkg/hostinfo"
	"github.com/llmkeeper/llmkeeper/pkg/modelmgr"
	"github.com/llmkeeper/llmkeeper/pkg/modelsync"
	"github.com/llmkeeper/llmkeeper/pkg/presenter"
)

type SyncConfig struct {
	Catalog       string
	Cleanup       bool
	AssumeYes     bool
	DryRun        bool
	MountPath     string
	RetryAttempts int
	RetryDelay    time.Duration
	Backoff       bool
}

func NewSyncConfig() *SyncConfig {
	return &SyncConfig{
		Catalog:       "models.csv",
		MountPath:     "/",
		RetryAttempts: modelsync.DefaultRetryAttempts,
		RetryDelay:    modelsync.DefaultRetryDelay,
	}
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download catalog models that fit this host",
	Long: `Sync reads the model catalog, skips entries whose declared RAM or disk
minimums exceed this host's capacity, and pulls every eligible model that is
not installed yet. With --cleanup it also offers to remove installed models
that are no longer in the catalog.`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getSyncConfigFromFlags(cmd)
		runSync(cmd, config)
	},
}

func init() {
	defaults := NewSyncConfig()
	syncCmd.Flags().StringP("catalog", "c", defaults.Catalog, "Path to the model catalog CSV")
	syncCmd.Flags().Bool("cleanup", defaults.Cleanup, "Remove installed models absent from the catalog")
	syncCmd.Flags().BoolP("yes", "y", defaults.AssumeYes, "Assume yes for confirmations (non-interactive)")
	syncCmd.Flags().Bool("dry-run", defaults.DryRun, "Report actions without pulling or removing anything")
	syncCmd.Flags().String("mount", defaults.MountPath, "Mount point measured for disk capacity")
	syncCmd.Flags().Int("retry-attempts", defaults.RetryAttempts, "Pull retry attempts (0 retries until success)")
	syncCmd.Flags().Duration("retry-delay", defaults.RetryDelay, "Delay between pull retries")
	syncCmd.Flags().Bool("backoff", defaults.Backoff, "Use exponential backoff between retries instead of a fixed delay")
}

func getSyncConfigFromFlags(cmd *cobra.Command) *SyncConfig {
	config := NewSyncConfig()
	if catalog, err := cmd.Flags().GetString("catalog"); err == nil {
		config.Catalog = catalog
	}
	if cleanup, err := cmd.Flags().GetBool("cleanup"); err == nil {
		config.Cleanup = cleanup
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.AssumeYes = yes
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if mount, err := cmd.Flags().GetString("mount"); err == nil {
		config.MountPath = mount
	}
	if attempts, err := cmd.Flags().GetInt("retry-attempts"); err == nil {
		config.RetryAttempts = attempts
	}
	if delay, err := cmd.Flags().GetDuration("retry-delay"); err == nil {
		config.RetryDelay = delay
	}
	if backoff, err := cmd.Flags().GetBool("backoff"); err == nil {
		config.Backoff = backoff
	}
	return config
}

func runSync(cmd *cobra.Command, config *SyncConfig) {
	ctx := cmd.Context()
	ui := newPresenter()

	manager := modelmgr.NewOllamaClient(viper.GetString("host"))
	if err := manager.Ping(ctx); err != nil {
		presenter.Error(err, "model manager unavailable")
		os.Exit(1)
	}

	engine := modelsync.NewEngine(modelsync.Config{
		CatalogPath: config.Catalog,
		Cleanup:     config.Cleanup,
		AssumeYes:   config.AssumeYes,
		DryRun:      config.DryRun,
		Retry: modelsync.RetryConfig{
			Attempts: config.RetryAttempts,
			Delay:    config.RetryDelay,
			Backoff:  config.Backoff,
		},
	}, manager, hostinfo.NewSystemProber(config.MountPath), ui)

	if _, err := engine.Run(ctx); err != nil {
		presenter.Error(err, "sync failed")
		os.Exit(1)
	}
}
