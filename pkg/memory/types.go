package memory

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleSystem   Role = "system"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusEscalated Status = "escalated"
	StatusResolved  Status = "resolved"
)

// CustomerInfo identifies the customer behind a session.
type CustomerInfo struct {
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	ExternalCustomerID string `json:"external_customer_id,omitempty"`
}

// Message is a single conversation turn. Messages are append-only; insertion
// order is the conversation order.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCallResult is the outcome of one tool invocation.
type ToolCallResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ToolCallRecord is the immutable audit record of one tool invocation.
type ToolCallRecord struct {
	ToolHandle string                 `json:"tool_handle"`
	Params     map[string]interface{} `json:"params"`
	Result     ToolCallResult         `json:"result"`
	Timestamp  time.Time              `json:"timestamp"`
}

// SessionContext holds derived per-session state: extracted entities, cached
// tool results for prompt building, routing history and escalation fields.
type SessionContext struct {
	OrderNumbers []string               `json:"order_numbers"`
	ToolData     map[string]interface{} `json:"tool_data,omitempty"`

	CurrentAgent  string   `json:"current_agent,omitempty"`
	AgentHistory  []string `json:"agent_history,omitempty"`
	IntentHistory []string `json:"intent_history,omitempty"`

	Escalated         bool   `json:"escalated"`
	EscalationReason  string `json:"escalation_reason,omitempty"`
	EscalationSummary string `json:"escalation_summary,omitempty"`
}

// Session is one customer conversation, owned exclusively by the Store.
type Session struct {
	ID           string           `json:"id"`
	Customer     CustomerInfo     `json:"customer"`
	Status       Status           `json:"status"`
	Messages     []Message        `json:"messages"`
	ToolCalls    []ToolCallRecord `json:"tool_calls"`
	Context      SessionContext   `json:"context"`
	StartedAt    time.Time        `json:"started_at"`
	LastActivity time.Time        `json:"last_activity"`
}

// FailedToolCallCount returns the number of recorded tool calls that failed.
func (s *Session) FailedToolCallCount() int {
	count := 0
	for _, tc := range s.ToolCalls {
		if !tc.Result.Success {
			count++
		}
	}
	return count
}

// DistinctIntentCount returns the number of distinct intents recorded in the
// session's routing history.
func (s *Session) DistinctIntentCount() int {
	seen := make(map[string]struct{}, len(s.Context.IntentHistory))
	for _, intent := range s.Context.IntentHistory {
		seen[intent] = struct{}{}
	}
	return len(seen)
}
