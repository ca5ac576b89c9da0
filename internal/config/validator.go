package config

import (
	"fmt"
	"strings"
)

// Validate checks referential integrity of the configuration: every routing
// rule targets a configured agent, every agent's allowed tools exist in the
// catalog, and provider profiles are complete.
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}
	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider != "anthropic" && profile.Provider != "openai" {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if err := validateAPIKey(profile.APIKey, profile.Provider); err != nil {
			return fmt.Errorf("AI profile %s: %w", profile.ID, err)
		}
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent must be configured")
	}
	agents := make(map[string]bool, len(c.Agents))
	for i, agent := range c.Agents {
		if agent.ID == "" {
			return fmt.Errorf("agent %d: ID is required", i)
		}
		if agents[agent.ID] {
			return fmt.Errorf("agent %s: duplicate ID", agent.ID)
		}
		agents[agent.ID] = true
	}

	if c.Routing.FallbackAgent == "" {
		return fmt.Errorf("routing fallback agent is required")
	}
	if !agents[c.Routing.FallbackAgent] {
		return fmt.Errorf("routing fallback agent %s is not configured", c.Routing.FallbackAgent)
	}
	for _, rule := range c.Routing.Rules {
		if rule.IntentID == "" {
			return fmt.Errorf("routing rule: intent_id is required")
		}
		if !agents[rule.TargetAgent] {
			return fmt.Errorf("routing rule %s: target agent %s is not configured", rule.IntentID, rule.TargetAgent)
		}
		if rule.MinConfidence < 0 || rule.MinConfidence > 1 {
			return fmt.Errorf("routing rule %s: min_confidence must be within [0, 1]", rule.IntentID)
		}
	}

	tools := make(map[string]bool, len(c.Tools.Definitions))
	for i, def := range c.Tools.Definitions {
		if def.Handle == "" {
			return fmt.Errorf("tool definition %d: handle is required", i)
		}
		if def.Endpoint == "" {
			return fmt.Errorf("tool %s: endpoint is required", def.Handle)
		}
		tools[def.Handle] = true
	}
	for _, agent := range c.Agents {
		for _, handle := range agent.AllowedTools {
			if !tools[handle] {
				return fmt.Errorf("agent %s: allowed tool %s is not defined", agent.ID, handle)
			}
		}
	}
	if len(c.Tools.Definitions) > 0 && c.Tools.BaseURL == "" {
		return fmt.Errorf("tools base_url is required when tool definitions are present")
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive path is required when archive is enabled")
	}

	return nil
}

func validateAPIKey(key, provider string) error {
	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}
	return nil
}
