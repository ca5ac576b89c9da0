package llm

import (
	"fmt"
)

// AuthProfile represents credentials for one LLM provider.
type AuthProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"` // lower = tried first
}

// Factory creates providers from auth profiles.
type Factory struct{}

// NewProvider creates a provider for the profile's vendor.
func (f *Factory) NewProvider(profile AuthProfile) (Provider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
