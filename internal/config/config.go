package config

import (
	"encoding/json"
	"time"

	"github.com/harun/tanya/pkg/intent"
	"github.com/harun/tanya/pkg/orchestrator"
	"github.com/harun/tanya/pkg/toolclient"
)

// Config is the full engine configuration. Agent definitions, routing rules
// and intent tables are produced offline and consumed here as static data.
type Config struct {
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	Session SessionConfig `json:"session" mapstructure:"session"`

	AI     AIConfig     `json:"ai" mapstructure:"ai"`
	Models ModelsConfig `json:"models" mapstructure:"models"`

	Agents  []orchestrator.AgentConfig `json:"agents" mapstructure:"agents"`
	Routing orchestrator.RoutingConfig `json:"routing" mapstructure:"routing"`
	Intents []intent.CategorySpec      `json:"intents" mapstructure:"intents"`

	Escalation EscalationConfig `json:"escalation" mapstructure:"escalation"`

	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	Resilience ResilienceConfig `json:"resilience" mapstructure:"resilience"`

	Archive     ArchiveConfig     `json:"archive" mapstructure:"archive"`
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`

	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// SessionConfig holds session store and rate limit configuration
type SessionConfig struct {
	MaxOrderNumbers int `json:"max_order_numbers" mapstructure:"max_order_numbers"`
	MaxCachedTools  int `json:"max_cached_tools" mapstructure:"max_cached_tools"`

	// RateLimit caps messages per session per window. Zero disables limiting.
	RateLimit       int           `json:"rate_limit" mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `json:"rate_limit_window" mapstructure:"rate_limit_window"`
}

// AIConfig holds LLM provider credentials
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile is one provider credential. Lower priority values are tried
// first in the fallback chain.
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// ModelsConfig holds model call parameters
type ModelsConfig struct {
	Default     string  `json:"default" mapstructure:"default"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// EscalationConfig holds escalation trigger tuning
type EscalationConfig struct {
	Keywords             []string `json:"keywords" mapstructure:"keywords"`
	TriggerPhrases       []string `json:"trigger_phrases" mapstructure:"trigger_phrases"`
	MultiIntentThreshold int      `json:"multi_intent_threshold" mapstructure:"multi_intent_threshold"`
	ToolFailureThreshold int      `json:"tool_failure_threshold" mapstructure:"tool_failure_threshold"`
}

// ToolsConfig holds the tool endpoint and catalog
type ToolsConfig struct {
	BaseURL     string                      `json:"base_url" mapstructure:"base_url"`
	CallTimeout time.Duration               `json:"call_timeout" mapstructure:"call_timeout"`
	MaxAttempts int                         `json:"max_attempts" mapstructure:"max_attempts"`
	Definitions []toolclient.ToolDefinition `json:"definitions" mapstructure:"definitions"`
}

// ResilienceConfig holds circuit breaker tuning shared by tool and model
// breakers
type ResilienceConfig struct {
	FailureThreshold int           `json:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold" mapstructure:"success_threshold"`
	ResetTimeout     time.Duration `json:"reset_timeout" mapstructure:"reset_timeout"`
	MonitoringWindow time.Duration `json:"monitoring_window" mapstructure:"monitoring_window"`
}

// ArchiveConfig holds the conversation archive settings
type ArchiveConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// MaintenanceConfig holds the background sweeper settings
type MaintenanceConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Schedule is a cron expression. Empty falls back to every minute.
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Session: SessionConfig{
			MaxOrderNumbers: 25,
			MaxCachedTools:  10,
			RateLimit:       30,
			RateLimitWindow: time.Minute,
		},
		Models: ModelsConfig{
			Default:     "claude-sonnet-4",
			Temperature: 0.3,
			MaxTokens:   1024,
		},
		Intents: intent.DefaultTable(),
		Escalation: EscalationConfig{
			Keywords:             []string{"human", "manager", "supervisor", "real person", "live agent"},
			TriggerPhrases:       []string{"speak to", "transfer to"},
			MultiIntentThreshold: 3,
			ToolFailureThreshold: 2,
		},
		Tools: ToolsConfig{
			CallTimeout: 30 * time.Second,
			MaxAttempts: 2,
		},
		Resilience: ResilienceConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			ResetTimeout:     30 * time.Second,
			MonitoringWindow: time.Minute,
		},
		Archive: ArchiveConfig{
			Enabled: false,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "@every 1m",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
