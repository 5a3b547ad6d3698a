// Command llmkeeper manages a local LLM installation: it syncs models from
// a catalog within the host's capacity budget, probes installed models for
// tool-calling support, and keeps skill directories reconciled across tool
// configurations.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/llmkeeper/llmkeeper/pkg/logger"
	"github.com/llmkeeper/llmkeeper/pkg/modelmgr"
	"github.com/llmkeeper/llmkeeper/pkg/presenter"
)

func init() {
	viper.SetEnvPrefix("LLMKEEPER")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.llmkeeper")
	viper.AddConfigPath(".")

	// Config file is optional.
	_ = viper.ReadInConfig()

	viper.SetDefault("host", modelmgr.DefaultOllamaHost)
}

var rootCmd = &cobra.Command{
	Use:   "llmkeeper",
	Short: "Operator tooling for local LLM installations",
	Long: `llmkeeper keeps a local LLM installation tidy: it downloads catalog
models that fit the host's RAM and disk budget, probes installed models for
tool-calling support, and reconciles skill directories into one canonical
store shared by every consuming tool.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Error(err, "invalid log level")
			os.Exit(1)
		}
		logger.SetLogFormat(viper.GetString("log_format"))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	rootCmd.PersistentFlags().String("host", modelmgr.DefaultOllamaHost, "Model manager base URL")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress non-error output")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newPresenter() presenter.Presenter {
	p := presenter.New()
	p.SetQuiet(viper.GetBool("quiet"))
	return p
}
