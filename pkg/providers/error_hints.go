package providers

import "strings"

func augmentProviderError(providerName, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return msg
	}

	lower := strings.ToLower(msg)
	providerName = NormalizeProviderName(providerName)

	switch providerName {
	case ProviderAnthropic:
		if strings.Contains(lower, "invalid x-api-key") {
			return msg + " Hint: provider anthropic expects a Console API key in providers.anthropic.api_key."
		}
		if strings.Contains(lower, "credit balance is too low") {
			return msg + " Hint: the Anthropic account has no remaining credit; replies will use the fallback text until it is topped up."
		}
	case ProviderOpenRouter:
		if strings.Contains(lower, "no auth credentials") || strings.Contains(lower, "user not found") {
			return msg + " Hint: check providers.openrouter.api_key; OpenRouter keys start with sk-or-."
		}
	case ProviderOpenAI:
		if strings.Contains(lower, "incorrect api key provided") {
			return msg + " Hint: provider openai expects a Platform API key in providers.openai.api_key."
		}
	}

	return msg
}
