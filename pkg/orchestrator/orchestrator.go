package orchestrator

import (
	"fmt"

	"github.com/harun/tanya/pkg/intent"
	"github.com/harun/tanya/pkg/memory"
	"github.com/harun/tanya/pkg/resilience"
	"github.com/harun/tanya/pkg/trace"
	"github.com/rs/zerolog"
)

// Orchestrator classifies intent, scores routing rules, detects escalation
// triggers and records its decisions into the session store and tracer.
type Orchestrator struct {
	store      *memory.Store
	tracer     *trace.Tracer
	classifier intent.Classifier
	confidence *resilience.ConfidenceEvaluator

	agents  map[string]AgentConfig
	routing RoutingConfig

	escalationKeywords   []string
	triggerPhrases       []string
	multiIntentThreshold int
	toolFailureThreshold int
	defaultMinConfidence float64

	logger zerolog.Logger
}

// Config holds orchestrator configuration. The multi-intent and tool-failure
// thresholds are heuristics and deliberately configurable.
type Config struct {
	Store      *memory.Store
	Tracer     *trace.Tracer
	Classifier intent.Classifier
	Confidence *resilience.ConfidenceEvaluator

	Agents  []AgentConfig
	Routing RoutingConfig

	EscalationKeywords   []string
	TriggerPhrases       []string
	MultiIntentThreshold int
	ToolFailureThreshold int
	DefaultMinConfidence float64

	Logger zerolog.Logger
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Tracer == nil {
		return nil, fmt.Errorf("tracer is required")
	}
	if cfg.Routing.FallbackAgent == "" {
		return nil, fmt.Errorf("fallback agent is required")
	}
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("at least one agent is required")
	}

	agents := make(map[string]AgentConfig, len(cfg.Agents))
	for _, agent := range cfg.Agents {
		if agent.ID == "" {
			return nil, fmt.Errorf("agent id is required")
		}
		agents[agent.ID] = agent
	}
	if _, ok := agents[cfg.Routing.FallbackAgent]; !ok {
		return nil, fmt.Errorf("fallback agent %s is not configured", cfg.Routing.FallbackAgent)
	}
	for _, rule := range cfg.Routing.Rules {
		if _, ok := agents[rule.TargetAgent]; !ok {
			return nil, fmt.Errorf("routing rule %s targets unknown agent %s", rule.IntentID, rule.TargetAgent)
		}
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = intent.NewDefaultClassifier()
	}
	confidence := cfg.Confidence
	if confidence == nil {
		confidence = resilience.NewConfidenceEvaluator()
	}

	keywords := cfg.EscalationKeywords
	if len(keywords) == 0 {
		keywords = []string{"human", "manager", "supervisor", "real person", "live agent"}
	}
	phrases := cfg.TriggerPhrases
	if len(phrases) == 0 {
		phrases = []string{"speak to", "transfer to"}
	}
	multiIntent := cfg.MultiIntentThreshold
	if multiIntent <= 0 {
		multiIntent = 3
	}
	toolFailures := cfg.ToolFailureThreshold
	if toolFailures <= 0 {
		toolFailures = 2
	}
	minConfidence := cfg.DefaultMinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.3
	}

	return &Orchestrator{
		store:                cfg.Store,
		tracer:               cfg.Tracer,
		classifier:           classifier,
		confidence:           confidence,
		agents:               agents,
		routing:              cfg.Routing,
		escalationKeywords:   keywords,
		triggerPhrases:       phrases,
		multiIntentThreshold: multiIntent,
		toolFailureThreshold: toolFailures,
		defaultMinConfidence: minConfidence,
		logger:               cfg.Logger,
	}, nil
}

// Agent returns the configuration for an agent id.
func (o *Orchestrator) Agent(agentID string) (AgentConfig, bool) {
	agent, ok := o.agents[agentID]
	return agent, ok
}

// FallbackAgent returns the designated fallback agent id.
func (o *Orchestrator) FallbackAgent() string {
	return o.routing.FallbackAgent
}
