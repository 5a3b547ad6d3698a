package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/llmkeeper/llmkeeper/pkg/presenter"
	"github.com/llmkeeper/llmkeeper/pkg/skillstore"
)

type SkillsSyncConfig struct {
	RepoDir          string
	CanonicalDir     string
	ConsumerDirs     []string
	PluginName       string
	PluginConfigPath string
	AssumeYes        bool
	DryRun           bool
}

// NewSkillsSyncConfig builds defaults rooted in the operator's home
// directory: the canonical store lives under ~/.llmkeeper, the consumers
// are the assistant tools' skill locations.
func NewSkillsSyncConfig() *SkillsSyncConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &SkillsSyncConfig{
		RepoDir:      "skills",
		CanonicalDir: filepath.Join(home, ".llmkeeper", "skills"),
		ConsumerDirs: []string{
			filepath.Join(home, ".claude", "skills"),
			filepath.Join(home, ".config", "opencode", "skills"),
		},
		PluginName:       "opencode-skills",
		PluginConfigPath: filepath.Join(home, ".config", "opencode", "opencode.json"),
	}
}

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage the canonical skill store",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile skill directories into the canonical store",
	Long: `Skills sync mirrors the repository skills directory into the canonical
store (never deleting canonical extras), replaces each consumer location
with a symlink to the canonical store after preserving any local-only
skills found there, and offers to copy canonical skills missing from the
repository back for version control.`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getSkillsSyncConfigFromFlags(cmd)
		runSkillsSync(cmd, config)
	},
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills in the canonical store",
	Run: func(cmd *cobra.Command, _ []string) {
		canonical, err := cmd.Flags().GetString("canonical")
		if err != nil || canonical == "" {
			canonical = NewSkillsSyncConfig().CanonicalDir
		}

		skills, err := skillstore.ListSkills(canonical)
		if err != nil {
			presenter.Error(err, "listing skills")
			os.Exit(1)
		}
		if err := skillstore.RenderSkillList(os.Stdout, skills); err != nil {
			presenter.Error(err, "rendering skill list")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewSkillsSyncConfig()
	skillsSyncCmd.Flags().String("repo", defaults.RepoDir, "Version-controlled skills directory")
	skillsSyncCmd.Flags().String("canonical", defaults.CanonicalDir, "Canonical skill store")
	skillsSyncCmd.Flags().StringSlice("consumer", defaults.ConsumerDirs, "Consumer locations to symlink (repeatable)")
	skillsSyncCmd.Flags().String("plugin", defaults.PluginName, "Skills plugin package to install globally (empty skips)")
	skillsSyncCmd.Flags().String("plugin-config", defaults.PluginConfigPath, "JSON config whose plugin array must list the plugin")
	skillsSyncCmd.Flags().BoolP("yes", "y", false, "Assume yes for confirmations (non-interactive)")
	skillsSyncCmd.Flags().Bool("dry-run", false, "Report actions without changing anything")

	skillsListCmd.Flags().String("canonical", defaults.CanonicalDir, "Canonical skill store")

	skillsCmd.AddCommand(skillsSyncCmd)
	skillsCmd.AddCommand(skillsListCmd)
}

func getSkillsSyncConfigFromFlags(cmd *cobra.Command) *SkillsSyncConfig {
	config := NewSkillsSyncConfig()
	if repo, err := cmd.Flags().GetString("repo"); err == nil {
		config.RepoDir = repo
	}
	if canonical, err := cmd.Flags().GetString("canonical"); err == nil {
		config.CanonicalDir = canonical
	}
	if consumers, err := cmd.Flags().GetStringSlice("consumer"); err == nil {
		config.ConsumerDirs = consumers
	}
	if plugin, err := cmd.Flags().GetString("plugin"); err == nil {
		config.PluginName = plugin
	}
	if pluginConfig, err := cmd.Flags().GetString("plugin-config"); err == nil {
		config.PluginConfigPath = pluginConfig
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.AssumeYes = yes
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	return config
}

func runSkillsSync(cmd *cobra.Command, config *SkillsSyncConfig) {
	ui := newPresenter()

	var requiredTools []string
	if config.PluginName != "" {
		requiredTools = append(requiredTools, "npm")
	}

	reconciler := skillstore.NewReconciler(skillstore.Config{
		RepoDir:          config.RepoDir,
		CanonicalDir:     config.CanonicalDir,
		ConsumerDirs:     config.ConsumerDirs,
		PluginName:       config.PluginName,
		PluginConfigPath: config.PluginConfigPath,
		RequiredTools:    requiredTools,
		AssumeYes:        config.AssumeYes,
		DryRun:           config.DryRun,
	}, nil, ui)

	if _, err := reconciler.Run(cmd.Context()); err != nil {
		presenter.Error(err, "skills sync failed")
		os.Exit(1)
	}

	ui.Success("skill store reconciled")
}
