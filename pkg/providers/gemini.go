package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/dotsetgreg/leadbot/pkg/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

func init() {
	Register(ProviderGemini, Registration{
		Section:  func(cfg *config.Config) config.ProviderConfig { return cfg.Providers.Gemini },
		AuthMode: authModeAPIKey,
		Build:    newGeminiProvider,
	})
}

type geminiProvider struct {
	client *genai.Client
}

func newGeminiProvider(pc config.ProviderConfig) (LLMProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(pc.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	if base := strings.TrimSpace(pc.APIBase); base != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiProvider{client: client}, nil
}

func (p *geminiProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.GetDefaultModel()
	}
	system, turns := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	gc := &genai.GenerateContentConfig{}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if maxTokens, ok := intOption(options, "max_tokens"); ok && maxTokens > 0 {
		gc.MaxOutputTokens = int32(maxTokens)
	}
	if temperature, ok := floatOption(options, "temperature"); ok {
		gc.Temperature = genai.Ptr(float32(*temperature))
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	out := &LLMResponse{Content: strings.TrimSpace(resp.Text())}
	if len(resp.Candidates) > 0 {
		out.FinishReason = strings.ToLower(string(resp.Candidates[0].FinishReason))
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &UsageInfo{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (p *geminiProvider) GetDefaultModel() string {
	return defaultGeminiModel
}
