package memory

import (
	"sync"
	"time"

	"github.com/harun/tanya/pkg/errorx"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// Store owns all session state. It is constructed once per process and
// injected into the orchestrator, tool client and agent executor. Sessions
// are never deleted automatically; Clear is the only removal path.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	maxOrderNumbers int
	maxCachedTools  int
}

// Config holds store configuration.
type Config struct {
	// MaxOrderNumbers caps the extracted order-number log per session.
	MaxOrderNumbers int
	// MaxCachedTools caps the per-session cached tool results.
	MaxCachedTools int
}

// DefaultConfig returns default store configuration.
func DefaultConfig() Config {
	return Config{
		MaxOrderNumbers: 25,
		MaxCachedTools:  10,
	}
}

// NewStore creates a new in-memory session store.
func NewStore(cfg Config) *Store {
	if cfg.MaxOrderNumbers <= 0 {
		cfg.MaxOrderNumbers = DefaultConfig().MaxOrderNumbers
	}
	if cfg.MaxCachedTools <= 0 {
		cfg.MaxCachedTools = DefaultConfig().MaxCachedTools
	}
	return &Store{
		sessions:        make(map[string]*Session),
		maxOrderNumbers: cfg.MaxOrderNumbers,
		maxCachedTools:  cfg.MaxCachedTools,
	}
}

// StartSession creates a new session and returns its id.
func (s *Store) StartSession(customer CustomerInfo) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", errorx.Wrap(err, errorx.CategorySession, "failed to generate session id", false, true)
	}

	now := time.Now()
	sess := &Session{
		ID:           id,
		Customer:     customer,
		Status:       StatusActive,
		Messages:     []Message{},
		ToolCalls:    []ToolCallRecord{},
		Context:      SessionContext{OrderNumbers: []string{}, ToolData: map[string]interface{}{}},
		StartedAt:    now,
		LastActivity: now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	log.Info().Str("session_id", id).Str("customer", customer.Email).Msg("Session started")

	return id, nil
}

// AddMessage appends a message to a session. Customer-authored content also
// goes through entity extraction; extraction failure never blocks recording.
func (s *Store) AddMessage(sessionID string, role Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errorx.SessionNotFound(sessionID)
	}

	now := time.Now()
	sess.Messages = append(sess.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	sess.LastActivity = now

	if role == RoleCustomer {
		sess.Context.OrderNumbers = appendOrderNumbers(sess.Context.OrderNumbers, ExtractOrderNumbers(content), s.maxOrderNumbers)
	}

	return nil
}

// RecordToolCall appends a tool-call audit record and opportunistically
// caches successful structured results keyed by tool handle for reuse in
// later prompts.
func (s *Store) RecordToolCall(sessionID, handle string, params map[string]interface{}, result ToolCallResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errorx.SessionNotFound(sessionID)
	}

	now := time.Now()
	sess.ToolCalls = append(sess.ToolCalls, ToolCallRecord{
		ToolHandle: handle,
		Params:     params,
		Result:     result,
		Timestamp:  now,
	})
	sess.LastActivity = now

	if result.Success && result.Data != nil {
		if sess.Context.ToolData == nil {
			sess.Context.ToolData = make(map[string]interface{})
		}
		if _, cached := sess.Context.ToolData[handle]; cached || len(sess.Context.ToolData) < s.maxCachedTools {
			sess.Context.ToolData[handle] = result.Data
		}
	}

	return nil
}

// Escalate marks a session escalated. Re-escalating an already-escalated
// session is a no-op; callers are expected to short-circuit before reaching
// here.
func (s *Store) Escalate(sessionID, reason, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errorx.SessionNotFound(sessionID)
	}

	if sess.Status == StatusEscalated {
		log.Debug().Str("session_id", sessionID).Msg("Session already escalated")
		return nil
	}

	sess.Status = StatusEscalated
	sess.Context.Escalated = true
	sess.Context.EscalationReason = reason
	sess.Context.EscalationSummary = summary
	sess.LastActivity = time.Now()

	log.Info().Str("session_id", sessionID).Str("reason", reason).Msg("Session escalated")

	return nil
}

// IsEscalated reports whether a session has been escalated. Unknown sessions
// report false.
func (s *Store) IsEscalated(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	return ok && sess.Status == StatusEscalated
}

// Session returns a deep copy of a session's state.
func (s *Store) Session(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errorx.SessionNotFound(sessionID)
	}
	return copySession(sess), nil
}

// Exists reports whether a session id is known.
func (s *Store) Exists(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// SetRouting records the chosen agent and intent for a turn. It returns the
// previously current agent so callers can detect agent changes.
func (s *Store) SetRouting(sessionID, agentID, intent string) (previousAgent string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", errorx.SessionNotFound(sessionID)
	}

	previousAgent = sess.Context.CurrentAgent
	if previousAgent != agentID {
		if previousAgent != "" {
			sess.Context.AgentHistory = append(sess.Context.AgentHistory, previousAgent)
		}
		sess.Context.CurrentAgent = agentID
	}
	// Unclassified turns carry no intent; recording the empty string would
	// inflate the distinct-intent count.
	if intent != "" {
		sess.Context.IntentHistory = append(sess.Context.IntentHistory, intent)
	}

	return previousAgent, nil
}

// Clear removes a session. This is the only removal path; nothing expires
// sessions automatically.
func (s *Store) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return errorx.SessionNotFound(sessionID)
	}
	delete(s.sessions, sessionID)

	log.Info().Str("session_id", sessionID).Msg("Session cleared")

	return nil
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SessionIDs returns the ids of all live sessions.
func (s *Store) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

func copySession(sess *Session) *Session {
	out := *sess
	out.Messages = append([]Message(nil), sess.Messages...)
	out.ToolCalls = append([]ToolCallRecord(nil), sess.ToolCalls...)
	out.Context.OrderNumbers = append([]string(nil), sess.Context.OrderNumbers...)
	out.Context.AgentHistory = append([]string(nil), sess.Context.AgentHistory...)
	out.Context.IntentHistory = append([]string(nil), sess.Context.IntentHistory...)
	out.Context.ToolData = make(map[string]interface{}, len(sess.Context.ToolData))
	for k, v := range sess.Context.ToolData {
		out.Context.ToolData[k] = v
	}
	return &out
}
