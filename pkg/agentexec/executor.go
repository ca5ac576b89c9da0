package agentexec

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/tanya/internal/observability"
	"github.com/harun/tanya/pkg/errorx"
	"github.com/harun/tanya/pkg/llm"
	"github.com/harun/tanya/pkg/memory"
	"github.com/harun/tanya/pkg/resilience"
	"github.com/harun/tanya/pkg/toolclient"
	"github.com/harun/tanya/pkg/trace"
)

// Agent is the executable view of one specialized agent.
type Agent struct {
	ID            string
	Name          string
	SystemPrompt  string
	AllowedTools  []string
	BoundaryRules []string
}

// Degraded replies used when the model cannot produce a usable answer.
const (
	degradedReply = "I'm having trouble processing your request right now. Could you rephrase it, or I can connect you with a member of our support team."
	toolLoopReply = "I wasn't able to finish looking that up. Let me connect you with a member of our support team who can help directly."
)

// Config holds executor configuration.
type Config struct {
	Store  *memory.Store
	Tracer *trace.Tracer
	Tools  *toolclient.Client
	// Providers is the ordered LLM fallback chain; the first healthy provider
	// wins.
	Providers []llm.Provider
	Breakers  *resilience.BreakerRegistry

	Model       string
	Temperature float64
	MaxTokens   int
	// MaxToolRounds caps tool-execution rounds within one turn.
	MaxToolRounds int

	Logger zerolog.Logger
}

// Executor runs one conversation turn for a routed agent: prompt assembly,
// the model call with provider fallback, and the bounded tool loop.
type Executor struct {
	store     *memory.Store
	tracer    *trace.Tracer
	tools     *toolclient.Client
	providers []llm.Provider
	breakers  *resilience.BreakerRegistry

	model         string
	temperature   float64
	maxTokens     int
	maxToolRounds int

	logger zerolog.Logger
}

// New creates an executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Tracer == nil {
		return nil, fmt.Errorf("tracer is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool client is required")
	}
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one LLM provider is required")
	}
	if cfg.Breakers == nil {
		return nil, fmt.Errorf("breaker registry is required")
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	return &Executor{
		store:         cfg.Store,
		tracer:        cfg.Tracer,
		tools:         cfg.Tools,
		providers:     cfg.Providers,
		breakers:      cfg.Breakers,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		maxToolRounds: cfg.MaxToolRounds,
		logger:        cfg.Logger,
	}, nil
}

// Execute runs one turn. The incoming customer message must already be
// recorded in the session; Execute records the agent's reply and every tool
// call it makes. The returned reply is always usable: model failures degrade
// to a fixed reply instead of surfacing as errors.
func (e *Executor) Execute(ctx context.Context, sessionID string, agent Agent) (string, error) {
	sess, err := e.store.Session(sessionID)
	if err != nil {
		return "", err
	}

	request := llm.Request{
		Model:        e.model,
		SystemPrompt: e.buildSystemPrompt(agent, sess),
		Messages:     historyMessages(sess),
		Tools:        e.toolSchemas(agent.AllowedTools),
		Temperature:  e.temperature,
		MaxTokens:    e.maxTokens,
	}

	retriedEmpty := false

	for round := 0; round <= e.maxToolRounds; round++ {
		response, err := e.chat(ctx, request)
		if err != nil {
			e.tracer.Append(sessionID, trace.EventError, "model call failed", map[string]interface{}{
				"agent": agent.ID,
				"error": err.Error(),
			})
			e.logger.Warn().
				Str("session_id", sessionID).
				Str("agent", agent.ID).
				Err(err).
				Msg("Model call failed, degrading")
			return e.reply(sessionID, degradedReply)
		}

		if response.IsEmpty() {
			// One fresh attempt for a malformed turn, then degrade.
			if retriedEmpty {
				e.tracer.Append(sessionID, trace.EventError, "empty model response", map[string]interface{}{
					"agent": agent.ID,
				})
				return e.reply(sessionID, degradedReply)
			}
			retriedEmpty = true
			continue
		}

		if !response.IsToolRequest() {
			return e.reply(sessionID, response.Content)
		}

		if round == e.maxToolRounds {
			break
		}

		request.Messages = append(request.Messages, llm.Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			result := e.runTool(ctx, sessionID, agent, call)
			request.Messages = append(request.Messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    toolResultContent(result),
			})
		}
	}

	e.tracer.Append(sessionID, trace.EventError, "tool round limit reached", map[string]interface{}{
		"agent":  agent.ID,
		"rounds": e.maxToolRounds,
	})
	e.logger.Warn().
		Str("session_id", sessionID).
		Str("agent", agent.ID).
		Int("rounds", e.maxToolRounds).
		Msg("Tool round limit reached")

	return e.reply(sessionID, toolLoopReply)
}

// chat calls the provider chain. Each provider gets its own circuit breaker
// and at most one retry; an open breaker skips straight to the next provider.
func (e *Executor) chat(ctx context.Context, request llm.Request) (*llm.Response, error) {
	handlers := make([]resilience.FallbackHandler, 0, len(e.providers))

	for _, provider := range e.providers {
		provider := provider
		breaker := e.breakers.Get("llm:" + provider.Name())

		handlers = append(handlers, resilience.FallbackHandler{
			Name: provider.Name(),
			Run: func(ctx context.Context) (interface{}, error) {
				if !breaker.CanExecute() {
					return nil, errorx.New(errorx.CategoryLLM,
						fmt.Sprintf("provider %s is cooling down", provider.Name()), true, false)
				}

				policy := resilience.RetryPolicy{
					MaxAttempts:       2,
					InitialDelay:      time.Second,
					MaxDelay:          5 * time.Second,
					BackoffMultiplier: 2,
				}

				var response *llm.Response
				err := policy.Do(ctx, func(ctx context.Context) error {
					start := time.Now()
					var chatErr error
					response, chatErr = provider.Chat(ctx, request)
					observability.RecordModelCall(provider.Name(), time.Since(start), chatErr == nil)
					if chatErr != nil {
						breaker.RecordFailure()
						return chatErr
					}
					breaker.RecordSuccess()
					return nil
				})
				if err != nil {
					return nil, err
				}
				return response, nil
			},
		})
	}

	value, name, err := resilience.NewFallbackChain(handlers...).Execute(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().Str("provider", name).Msg("Model call served")

	return value.(*llm.Response), nil
}

// runTool executes one model-requested tool call, enforcing the agent's
// allow-list, and records the outcome in the session and the trace.
func (e *Executor) runTool(ctx context.Context, sessionID string, agent Agent, call llm.ToolCall) toolclient.Result {
	var result toolclient.Result

	if !contains(agent.AllowedTools, call.Name) {
		result = toolclient.Result{
			Success:    false,
			Error:      fmt.Sprintf("tool %s is not available to this agent", call.Name),
			Suggestion: "use one of the declared tools",
		}
	} else {
		result = e.tools.Execute(ctx, call.Name, call.Arguments)
	}

	if err := e.store.RecordToolCall(sessionID, call.Name, call.Arguments, memory.ToolCallResult{
		Success: result.Success,
		Data:    result.Data,
		Error:   result.Error,
	}); err != nil {
		e.logger.Error().
			Str("session_id", sessionID).
			Str("tool", call.Name).
			Err(err).
			Msg("Failed to record tool call")
	}

	e.tracer.Append(sessionID, trace.EventToolCall, call.Name, map[string]interface{}{
		"agent":   agent.ID,
		"tool":    call.Name,
		"success": result.Success,
	})

	return result
}

// reply records the agent's outgoing message and traces it.
func (e *Executor) reply(sessionID, content string) (string, error) {
	if err := e.store.AddMessage(sessionID, memory.RoleAgent, content); err != nil {
		return "", err
	}
	e.tracer.Append(sessionID, trace.EventMessage, "agent reply", map[string]interface{}{
		"role": string(memory.RoleAgent),
	})
	return content, nil
}

// toolSchemas builds the model-facing tool declarations for the agent's
// allow-list. Unknown handles in the allow-list are skipped.
func (e *Executor) toolSchemas(allowed []string) []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(allowed))
	for _, handle := range allowed {
		def := e.tools.Catalog().Get(handle)
		if def == nil {
			e.logger.Warn().Str("tool", handle).Msg("Allowed tool not in catalog")
			continue
		}
		schemas = append(schemas, llm.ToolSchema{
			Name:        def.Handle,
			Description: def.Description,
			InputSchema: def.InputSchema(),
		})
	}
	return schemas
}

func historyMessages(sess *memory.Session) []llm.Message {
	messages := make([]llm.Message, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		role := "user"
		switch msg.Role {
		case memory.RoleAgent:
			role = "assistant"
		case memory.RoleSystem:
			role = "system"
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}
	return messages
}

func toolResultContent(result toolclient.Result) string {
	if result.Success {
		return fmt.Sprintf("%v", result.Data)
	}
	content := "error: " + result.Error
	if result.Suggestion != "" {
		content += ". " + result.Suggestion
	}
	return content
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
