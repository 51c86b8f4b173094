package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/config"
)

const (
	defaultAnthropicAPIBase   = "https://api.anthropic.com/v1"
	defaultAnthropicModel     = "claude-sonnet-4-5-20250929"
	defaultAnthropicMaxTokens = 4096
	anthropicVersion          = "2023-06-01"
)

func init() {
	Register(ProviderAnthropic, Registration{
		Section:  func(cfg *config.Config) config.ProviderConfig { return cfg.Providers.Anthropic },
		AuthMode: authModeHeaderKey,
		Build:    newAnthropicProvider,
	})
}

// anthropicProvider speaks the native Messages API, which takes the system
// prompt as a top-level field and requires max_tokens.
type anthropicProvider struct {
	endpoint string
	auth     AuthStrategy
	client   *http.Client
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

func newAnthropicProvider(pc config.ProviderConfig) (LLMProvider, error) {
	apiBase := strings.TrimRight(strings.TrimSpace(pc.APIBase), "/")
	if apiBase == "" {
		apiBase = defaultAnthropicAPIBase
	}
	client, err := newHTTPClient(ProviderAnthropic, pc.Proxy)
	if err != nil {
		return nil, err
	}
	return &anthropicProvider{
		endpoint: apiBase + "/messages",
		auth:     NewHeaderKeyAuth("x-api-key", NewStaticTokenSource(pc.APIKey, "providers.anthropic.api_key")),
		client:   client,
	}, nil
}

func (p *anthropicProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	system, turns := splitSystem(messages)
	req := anthropicRequest{
		Model:     strings.TrimSpace(model),
		MaxTokens: defaultAnthropicMaxTokens,
		System:    system,
		Messages:  turns,
	}
	if req.Model == "" {
		req.Model = p.GetDefaultModel()
	}
	if n, ok := intOption(options, "max_tokens"); ok && n > 0 {
		req.MaxTokens = n
	}
	req.Temperature, _ = floatOption(options, "temperature")

	body, err := postJSON(ctx, p.client, ProviderAnthropic, p.endpoint, req, func(r *http.Request) error {
		r.Header.Set("anthropic-version", anthropicVersion)
		if err := p.auth.Apply(ctx, r); err != nil {
			return fmt.Errorf("apply anthropic auth: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := parseAnthropicResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w", err)
	}
	return result, nil
}

func (p *anthropicProvider) GetDefaultModel() string {
	return defaultAnthropicModel
}

func parseAnthropicResponse(body []byte) (*LLMResponse, error) {
	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, block := range payload.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return &LLMResponse{
		Content:      strings.TrimSpace(b.String()),
		FinishReason: payload.StopReason,
		Usage: &UsageInfo{
			PromptTokens:     payload.Usage.InputTokens,
			CompletionTokens: payload.Usage.OutputTokens,
			TotalTokens:      payload.Usage.InputTokens + payload.Usage.OutputTokens,
		},
	}, nil
}
