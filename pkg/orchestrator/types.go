package orchestrator

// AgentConfig is the read-only configuration of one specialized agent. It is
// produced offline by the config-generation pipeline and consumed as static
// data here.
type AgentConfig struct {
	ID             string   `json:"id" mapstructure:"id"`
	Name           string   `json:"name" mapstructure:"name"`
	SystemPrompt   string   `json:"system_prompt" mapstructure:"system_prompt"`
	AllowedTools   []string `json:"allowed_tools" mapstructure:"allowed_tools"`
	TriggerPhrases []string `json:"trigger_phrases" mapstructure:"trigger_phrases"`
	BoundaryRules  []string `json:"boundary_rules" mapstructure:"boundary_rules"`
}

// RoutingRule maps an intent plus keyword evidence to a target agent.
type RoutingRule struct {
	IntentID      string   `json:"intent_id" mapstructure:"intent_id"`
	Keywords      []string `json:"keywords" mapstructure:"keywords"`
	MinConfidence float64  `json:"min_confidence" mapstructure:"min_confidence"`
	TargetAgent   string   `json:"target_agent" mapstructure:"target_agent"`
}

// RoutingConfig is the rule set plus the designated fallback agent.
type RoutingConfig struct {
	Rules         []RoutingRule `json:"rules" mapstructure:"rules"`
	FallbackAgent string        `json:"fallback_agent" mapstructure:"fallback_agent"`
}

// Escalation reason strings, deterministic per trigger category.
const (
	ReasonHumanRequest  = "customer explicitly requested human assistance"
	ReasonMultiIntent   = "conversation spans too many distinct issues"
	ReasonToolFailures  = "multiple tool failures prevented resolution"
	ReasonCannotProceed = "cannot safely proceed with automated handling"
)

// EscalationResponse is the fixed reply once a session is escalated.
const EscalationResponse = "I'm connecting you with a member of our support team who can help you further. They'll have the full context of our conversation."

// Escalation describes a fired escalation.
type Escalation struct {
	Reason   string `json:"reason"`
	Summary  string `json:"summary"`
	Response string `json:"response"`
}

// Decision is the outcome of routing one message.
type Decision struct {
	AgentID      string  `json:"agent_id"`
	Intent       string  `json:"intent"`
	Confidence   float64 `json:"confidence"`
	RuleScore    float64 `json:"rule_score"`
	UsedFallback bool    `json:"used_fallback"`
	AgentChanged bool    `json:"agent_changed"`
	Sticky       bool    `json:"sticky"`
}
