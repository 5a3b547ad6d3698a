package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/llmkeeper/llmkeeper/pkg/modelmgr"
	"github.com/llmkeeper/llmkeeper/pkg/presenter"
	"github.com/llmkeeper/llmkeeper/pkg/probe"
)

type ProbeConfig struct {
	Pattern  string
	Endpoint string
	Timeout  time.Duration
}

func NewProbeConfig() *ProbeConfig {
	return &ProbeConfig{
		Pattern: "all",
		Timeout: 2 * time.Minute,
	}
}

var probeCmd = &cobra.Command{
	Use:   "probe [all|pattern]",
	Short: "Check installed models for tool-calling support",
	Long: `Probe sends each installed model a single chat request carrying one tool
definition and reports whether the response invoked it. Models are matched
case-insensitively by substring, or by glob when the pattern contains
wildcards; "all" (the default) probes everything.

A failed probe is reported as "unknown" rather than "no tools": one network
hiccup says nothing about the model's capabilities.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getProbeConfigFromFlags(cmd, args)
		runProbe(cmd, config)
	},
}

func init() {
	defaults := NewProbeConfig()
	probeCmd.Flags().String("endpoint", defaults.Endpoint, "OpenAI-compatible chat endpoint (defaults to <host>/v1)")
	probeCmd.Flags().Duration("timeout", defaults.Timeout, "Per-model probe timeout")
}

func getProbeConfigFromFlags(cmd *cobra.Command, args []string) *ProbeConfig {
	config := NewProbeConfig()
	if len(args) > 0 {
		config.Pattern = args[0]
	}
	if endpoint, err := cmd.Flags().GetString("endpoint"); err == nil && endpoint != "" {
		config.Endpoint = endpoint
	}
	if timeout, err := cmd.Flags().GetDuration("timeout"); err == nil {
		config.Timeout = timeout
	}
	return config
}

func runProbe(cmd *cobra.Command, config *ProbeConfig) {
	ctx := cmd.Context()

	manager := modelmgr.NewOllamaClient(viper.GetString("host"))
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = manager.BaseURL() + "/v1"
	}

	prober := probe.NewProber(probe.Config{
		BaseURL: endpoint,
		Pattern: config.Pattern,
		Timeout: config.Timeout,
	}, manager)

	report, err := prober.Run(ctx)
	if err != nil {
		presenter.Error(err, "probe failed")
		os.Exit(1)
	}

	if err := report.Render(os.Stdout); err != nil {
		presenter.Error(err, "rendering report")
		os.Exit(1)
	}
}
