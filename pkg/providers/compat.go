package providers

import (
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/config"
)

const (
	defaultOpenRouterModel = "anthropic/claude-sonnet-4.5"
	defaultOpenAIModel     = "gpt-5-mini"
)

// compatVendor is a vendor served by the chat completions client.
type compatVendor struct {
	name    string
	apiBase string
	model   string
	section func(cfg *config.Config) config.ProviderConfig
	headers map[string]string
}

var compatVendors = []compatVendor{
	{
		name:    ProviderOpenRouter,
		apiBase: "https://openrouter.ai/api/v1",
		model:   defaultOpenRouterModel,
		section: func(cfg *config.Config) config.ProviderConfig { return cfg.Providers.OpenRouter },
		headers: map[string]string{"X-Title": "leadbot"},
	},
	{
		name:    ProviderOpenAI,
		apiBase: "https://api.openai.com/v1",
		model:   defaultOpenAIModel,
		section: func(cfg *config.Config) config.ProviderConfig { return cfg.Providers.OpenAI },
	},
}

func init() {
	for _, v := range compatVendors {
		Register(v.name, Registration{
			Section:  v.section,
			AuthMode: authModeAPIKey,
			Build:    v.build,
		})
	}
}

func (v compatVendor) build(pc config.ProviderConfig) (LLMProvider, error) {
	apiBase := strings.TrimSpace(pc.APIBase)
	if apiBase == "" {
		apiBase = v.apiBase
	}
	auth := NewAPIKeyAuth(NewStaticTokenSource(pc.APIKey, "providers."+v.name+".api_key"))
	return newChatCompletionsProvider(v.name, apiBase, v.model, strings.TrimSpace(pc.Proxy), auth, v.headers)
}
