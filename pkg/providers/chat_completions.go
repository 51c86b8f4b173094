package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// chatCompletionsProvider serves every vendor that speaks the OpenAI
// /chat/completions dialect.
type chatCompletionsProvider struct {
	name         string
	endpoint     string
	defaultModel string
	auth         AuthStrategy
	client       *http.Client
	headers      http.Header
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *UsageInfo `json:"usage"`
}

func newChatCompletionsProvider(providerName, apiBase, defaultModel, proxy string, auth AuthStrategy, extraHeaders map[string]string) (*chatCompletionsProvider, error) {
	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		return nil, fmt.Errorf("%s API base not configured", name)
	}
	if auth == nil {
		return nil, fmt.Errorf("%s auth is not configured", name)
	}
	client, err := newHTTPClient(name, proxy)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	for k, v := range extraHeaders {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			headers.Set(k, v)
		}
	}

	return &chatCompletionsProvider{
		name:         name,
		endpoint:     base + "/chat/completions",
		defaultModel: strings.TrimSpace(defaultModel),
		auth:         auth,
		client:       client,
		headers:      headers,
	}, nil
}

func (p *chatCompletionsProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	req := chatRequest{
		Model:    strings.TrimSpace(model),
		Messages: messages,
	}
	if req.Model == "" {
		req.Model = p.defaultModel
	}
	if n, ok := intOption(options, "max_tokens"); ok && n > 0 {
		req.MaxTokens = n
	}
	req.Temperature, _ = floatOption(options, "temperature")

	body, err := postJSON(ctx, p.client, p.name, p.endpoint, req, func(r *http.Request) error {
		if err := p.auth.Apply(ctx, r); err != nil {
			return fmt.Errorf("apply %s auth: %w", p.name, err)
		}
		for k := range p.headers {
			r.Header.Set(k, p.headers.Get(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", p.name, err)
	}
	out := &LLMResponse{FinishReason: "stop", Usage: resp.Usage}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Content = strings.TrimSpace(messageText(choice.Message.Content))
		out.FinishReason = choice.FinishReason
	}
	return out, nil
}

func (p *chatCompletionsProvider) GetDefaultModel() string {
	return p.defaultModel
}

// messageText accepts either a plain string or a list of content parts.
func messageText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var parts []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if json.Unmarshal(raw, &parts) != nil {
		return ""
	}
	var b strings.Builder
	for _, part := range parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		} else {
			b.WriteString(part.Content)
		}
	}
	return b.String()
}
