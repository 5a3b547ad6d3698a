// Package probe checks installed models for tool-calling support by issuing
// a single scripted chat completion with one tool definition against the
// model manager's OpenAI-compatible endpoint and inspecting the response
// for tool calls.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/llmkeeper/llmkeeper/pkg/logger"
	"github.com/llmkeeper/llmkeeper/pkg/modelmgr"
)

// DefaultBaseURL is ollama's OpenAI-compatible surface.
const DefaultBaseURL = "http://localhost:11434/v1"

const probeQuestion = "What is the weather like in Toronto right now?"

// probeTool is the single tool definition offered to each model. Any model
// that understands tool calling should reach for it given the question.
var probeTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "get_current_weather",
		Description: "Get the current weather for a location",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "The city to get the weather for",
				},
			},
			"required": []string{"location"},
		},
	},
}

// Verdict classifies one model's probe outcome. Unknown is deliberately
// distinct from Incapable: a transport or API failure says nothing about
// the model's tool support.
type Verdict int

const (
	// VerdictUnknown means the probe itself failed.
	VerdictUnknown Verdict = iota
	// VerdictCapable means the response carried at least one tool call.
	VerdictCapable
	// VerdictIncapable means the model answered without invoking the tool.
	VerdictIncapable
)

func (v Verdict) String() string {
	switch v {
	case VerdictCapable:
		return "tools"
	case VerdictIncapable:
		return "no tools"
	default:
		return "unknown"
	}
}

// Result is the probe outcome for a single model.
type Result struct {
	Model   string
	Verdict Verdict
	Detail  string
}

// Config configures a probe run.
type Config struct {
	// BaseURL of the OpenAI-compatible chat endpoint; DefaultBaseURL when
	// empty.
	BaseURL string
	// Pattern filters models: "all" (or the legacy "--all") probes every
	// installed model, anything else matches case-insensitively as a
	// substring, or as a glob when it contains metacharacters.
	Pattern string
	// Timeout bounds a single probe request. Defaults to 2 minutes; slow
	// local models need generous headroom for a one-shot completion.
	Timeout time.Duration
}

// Prober runs capability probes over installed models.
type Prober struct {
	cfg     Config
	client  *openai.Client
	manager modelmgr.Manager
}

// NewProber creates a prober talking to the configured endpoint. Local
// endpoints need no API key.
func NewProber(cfg Config, manager modelmgr.Manager) *Prober {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	clientConfig := openai.DefaultConfig("")
	clientConfig.BaseURL = cfg.BaseURL

	return &Prober{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(clientConfig),
		manager: manager,
	}
}

// Run probes every installed model matching the configured pattern. An
// unreachable manager is a fatal precondition; per-model probe failures are
// recorded as VerdictUnknown.
func (p *Prober) Run(ctx context.Context) (*Report, error) {
	if err := p.manager.Ping(ctx); err != nil {
		return nil, err
	}

	installed, err := p.manager.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list installed models")
	}

	matcher, err := newMatcher(p.cfg.Pattern)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, model := range installed {
		if !matcher(model) {
			continue
		}
		report.Results = append(report.Results, p.probeModel(ctx, model))
	}

	return report, nil
}

func (p *Prober) probeModel(ctx context.Context, model string) Result {
	log := logger.G(ctx).WithField("model", model)

	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(probeCtx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: probeQuestion},
		},
		Tools:  []openai.Tool{probeTool},
		Stream: false,
	})
	if err != nil {
		log.WithError(err).Warn("probe request failed")
		return Result{Model: model, Verdict: VerdictUnknown, Detail: trimDetail(err.Error())}
	}

	if len(resp.Choices) == 0 {
		log.Warn("probe response had no choices")
		return Result{Model: model, Verdict: VerdictUnknown, Detail: "empty response"}
	}

	toolCalls := resp.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		return Result{Model: model, Verdict: VerdictIncapable}
	}

	return Result{
		Model:   model,
		Verdict: VerdictCapable,
		Detail:  fmt.Sprintf("called %s", toolCalls[0].Function.Name),
	}
}

// newMatcher builds the model-name filter for a pattern.
func newMatcher(pattern string) (func(string) bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(pattern))
	if normalized == "" || normalized == "all" || normalized == "--all" {
		return func(string) bool { return true }, nil
	}

	if strings.ContainsAny(normalized, "*?[") {
		g, err := glob.Compile(normalized)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
		}
		return func(model string) bool {
			return g.Match(strings.ToLower(model))
		}, nil
	}

	return func(model string) bool {
		return strings.Contains(strings.ToLower(model), normalized)
	}, nil
}

func trimDetail(s string) string {
	const max = 80
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
