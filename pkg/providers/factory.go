package providers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dotsetgreg/leadbot/pkg/config"
)

const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
)

// Registration tells the registry where a provider's settings live and how
// to build a client from them.
type Registration struct {
	Section  func(cfg *config.Config) config.ProviderConfig
	AuthMode string
	Build    func(pc config.ProviderConfig) (LLMProvider, error)
}

var (
	registryMu  sync.RWMutex
	registry    = map[string]Registration{}
	registerErr error
)

// Register adds a provider. Invalid registrations are remembered and
// reported by every later lookup instead of panicking during init.
func Register(name string, reg Registration) {
	name = NormalizeProviderName(name)
	registryMu.Lock()
	defer registryMu.Unlock()
	switch {
	case name == "":
		registerErr = errors.Join(registerErr, errors.New("providers: registration name is required"))
	case reg.Section == nil || reg.Build == nil:
		registerErr = errors.Join(registerErr, fmt.Errorf("providers: %s registration is incomplete", name))
	default:
		registry[name] = reg
	}
}

func SupportedProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeProviderName maps aliases and the empty string onto registry keys.
func NormalizeProviderName(name string) string {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case "", "claude":
		return ProviderAnthropic
	case "google":
		return ProviderGemini
	default:
		return name
	}
}

func ActiveProviderName(cfg *config.Config) string {
	if cfg == nil {
		return ProviderAnthropic
	}
	return NormalizeProviderName(cfg.Model.Provider)
}

// ValidateProviderConfig reports whether the active provider has a key.
func ValidateProviderConfig(cfg *config.Config) error {
	name, reg, err := lookup(cfg)
	if err != nil {
		return err
	}
	if strings.TrimSpace(reg.Section(cfg).APIKey) == "" {
		return fmt.Errorf("%s API key is required (set providers.%s.api_key or LEADBOT_PROVIDERS_%s_API_KEY)",
			name, name, strings.ToUpper(name))
	}
	return nil
}

func ProviderCredentialStatus(cfg *config.Config) (provider string, configured bool, mode string, err error) {
	name, reg, err := lookup(cfg)
	if err != nil {
		return "", false, "", err
	}
	if strings.TrimSpace(reg.Section(cfg).APIKey) == "" {
		return name, false, "", nil
	}
	return name, true, reg.AuthMode, nil
}

func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	if err := ValidateProviderConfig(cfg); err != nil {
		return nil, err
	}
	_, reg, err := lookup(cfg)
	if err != nil {
		return nil, err
	}
	return reg.Build(reg.Section(cfg))
}

func lookup(cfg *config.Config) (string, Registration, error) {
	if cfg == nil {
		return "", Registration{}, errors.New("config is required")
	}
	name := ActiveProviderName(cfg)

	registryMu.RLock()
	reg, ok := registry[name]
	failed := registerErr
	registryMu.RUnlock()

	if failed != nil {
		return name, Registration{}, fmt.Errorf("provider registration failed: %w", failed)
	}
	if !ok {
		return name, Registration{}, fmt.Errorf("unsupported provider %q: supported providers are %s",
			name, strings.Join(SupportedProviders(), ", "))
	}
	return name, reg, nil
}
