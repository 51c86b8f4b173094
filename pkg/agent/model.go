package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/dotsetgreg/leadbot/pkg/metrics"
	"github.com/dotsetgreg/leadbot/pkg/providers"
)

type ModelOptions struct {
	Model               string
	MaxTokens           int
	Temperature         float64
	AnalysisMaxTokens   int
	AnalysisTemperature float64
	// USD per million tokens, used only for the cost estimate in logs.
	InputCostPerMTok  float64
	OutputCostPerMTok float64
	// Opening is prepended as a customer turn when the history starts with
	// the assistant.
	Opening string
}

// ProviderModel adapts an LLMProvider to the reply and extraction calls of
// the pipeline.
type ProviderModel struct {
	provider providers.LLMProvider
	opts     ModelOptions
	metrics  *metrics.Metrics
}

func NewProviderModel(provider providers.LLMProvider, opts ModelOptions, m *metrics.Metrics) *ProviderModel {
	if opts.Model == "" {
		opts.Model = provider.GetDefaultModel()
	}
	if opts.AnalysisMaxTokens <= 0 {
		opts.AnalysisMaxTokens = 500
	}
	return &ProviderModel{provider: provider, opts: opts, metrics: m}
}

func (pm *ProviderModel) GenerateReply(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	messages := make([]providers.Message, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: systemPrompt})
	}
	if len(turns) > 0 && turns[0].Role == RoleAssistant && pm.opts.Opening != "" {
		messages = append(messages, providers.Message{Role: providers.RoleUser, Content: pm.opts.Opening})
	}
	messages = append(messages, toProviderMessages(turns)...)

	return pm.call(ctx, "reply", messages, map[string]interface{}{
		"max_tokens":  pm.opts.MaxTokens,
		"temperature": pm.opts.Temperature,
	})
}

func (pm *ProviderModel) ExtractFields(ctx context.Context, instruction, transcript string) (string, error) {
	messages := []providers.Message{{
		Role:    providers.RoleUser,
		Content: instruction + "\n\n" + transcript,
	}}
	return pm.call(ctx, "extract", messages, map[string]interface{}{
		"max_tokens":  pm.opts.AnalysisMaxTokens,
		"temperature": pm.opts.AnalysisTemperature,
	})
}

func (pm *ProviderModel) call(ctx context.Context, kind string, messages []providers.Message, options map[string]interface{}) (string, error) {
	started := time.Now()
	resp, err := pm.provider.Chat(ctx, messages, pm.opts.Model, options)
	if err == nil && resp == nil {
		err = errors.New("provider returned no response")
	}
	pm.metrics.ObserveModel(kind, started, err)
	if err != nil {
		return "", fmt.Errorf("%s call: %w", kind, err)
	}

	fields := map[string]interface{}{
		"call":        kind,
		"model":       pm.opts.Model,
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if u := resp.Usage; u != nil {
		fields["prompt_tokens"] = u.PromptTokens
		fields["completion_tokens"] = u.CompletionTokens
		fields["cost_usd"] = pm.estimateCost(u)
	}
	logger.InfoCF("model", "Model call completed", fields)

	return strings.TrimSpace(resp.Content), nil
}

func (pm *ProviderModel) estimateCost(u *providers.UsageInfo) float64 {
	return float64(u.PromptTokens)/1e6*pm.opts.InputCostPerMTok +
		float64(u.CompletionTokens)/1e6*pm.opts.OutputCostPerMTok
}

func toProviderMessages(turns []Turn) []providers.Message {
	out := make([]providers.Message, 0, len(turns))
	for _, t := range turns {
		role := providers.RoleUser
		if t.Role == RoleAssistant {
			role = providers.RoleAssistant
		}
		out = append(out, providers.Message{Role: role, Content: t.Content})
	}
	return out
}
