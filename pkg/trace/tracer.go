package trace

import (
	"sync"
	"time"

	"github.com/harun/tanya/pkg/errorx"
	"github.com/rs/zerolog/log"
)

// EventType categorizes timeline events.
type EventType string

const (
	EventMessage    EventType = "message"
	EventToolCall   EventType = "tool_call"
	EventRouting    EventType = "routing"
	EventEscalation EventType = "escalation"
	EventError      EventType = "error"
)

// Event is one immutable entry in a session's timeline.
type Event struct {
	Type      EventType              `json:"type"`
	Detail    string                 `json:"detail"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Summary is derived state maintained incrementally as events are appended,
// never recomputed from a replay.
type Summary struct {
	MessageCount   int           `json:"message_count"`
	ToolCallCount  int           `json:"tool_call_count"`
	ToolSuccesses  int           `json:"tool_successes"`
	ToolFailures   int           `json:"tool_failures"`
	RoutingChanges int           `json:"routing_changes"`
	ErrorCount     int           `json:"error_count"`
	Escalated      bool          `json:"escalated"`
	AgentsVisited  []string      `json:"agents_visited"`
	Duration       time.Duration `json:"duration"`
	FirstEventAt   time.Time     `json:"first_event_at"`
	LastEventAt    time.Time     `json:"last_event_at"`
}

// SessionTrace is the authoritative, append-only record of everything the
// system did for one session.
type SessionTrace struct {
	SessionID string  `json:"session_id"`
	Events    []Event `json:"events"`
	Summary   Summary `json:"summary"`
}

// Subscriber receives events as they are appended. Used for live trace
// streaming; a slow subscriber must not block appends.
type Subscriber func(sessionID string, event Event)

// Tracer owns per-session observability timelines. Process-wide lifetime;
// traces are removed only via Clear.
type Tracer struct {
	traces      map[string]*SessionTrace
	subscribers []Subscriber
	mu          sync.RWMutex
}

// NewTracer creates a new tracer.
func NewTracer() *Tracer {
	return &Tracer{
		traces: make(map[string]*SessionTrace),
	}
}

// Subscribe registers a subscriber for all appended events.
func (t *Tracer) Subscribe(sub Subscriber) {
	t.mu.Lock()
	t.subscribers = append(t.subscribers, sub)
	t.mu.Unlock()
}

// Begin initializes an empty trace for a session.
func (t *Tracer) Begin(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.traces[sessionID]; ok {
		return
	}
	t.traces[sessionID] = &SessionTrace{
		SessionID: sessionID,
		Events:    []Event{},
	}
}

// Append records an event and updates the derived summary.
func (t *Tracer) Append(sessionID string, eventType EventType, detail string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Detail:    detail,
		Data:      data,
		Timestamp: time.Now(),
	}

	t.mu.Lock()
	tr, ok := t.traces[sessionID]
	if !ok {
		tr = &SessionTrace{SessionID: sessionID, Events: []Event{}}
		t.traces[sessionID] = tr
	}
	tr.Events = append(tr.Events, event)
	applyToSummary(&tr.Summary, event)
	subs := append([]Subscriber(nil), t.subscribers...)
	t.mu.Unlock()

	log.Debug().
		Str("session_id", sessionID).
		Str("event", string(eventType)).
		Str("detail", detail).
		Msg("Trace event appended")

	for _, sub := range subs {
		sub(sessionID, event)
	}
}

// Trace returns a copy of the session's trace.
func (t *Tracer) Trace(sessionID string) (*SessionTrace, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tr, ok := t.traces[sessionID]
	if !ok {
		return nil, errorx.SessionNotFound(sessionID)
	}

	out := &SessionTrace{
		SessionID: tr.SessionID,
		Events:    append([]Event(nil), tr.Events...),
		Summary:   tr.Summary,
	}
	out.Summary.AgentsVisited = append([]string(nil), tr.Summary.AgentsVisited...)
	return out, nil
}

// Clear removes a session's trace.
func (t *Tracer) Clear(sessionID string) {
	t.mu.Lock()
	delete(t.traces, sessionID)
	t.mu.Unlock()
}

// Count returns the number of live traces.
func (t *Tracer) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.traces)
}

func applyToSummary(s *Summary, event Event) {
	if s.FirstEventAt.IsZero() {
		s.FirstEventAt = event.Timestamp
	}
	s.LastEventAt = event.Timestamp
	s.Duration = s.LastEventAt.Sub(s.FirstEventAt)

	switch event.Type {
	case EventMessage:
		s.MessageCount++
	case EventToolCall:
		s.ToolCallCount++
		if success, ok := event.Data["success"].(bool); ok && success {
			s.ToolSuccesses++
		} else {
			s.ToolFailures++
		}
	case EventRouting:
		s.RoutingChanges++
		if agent, ok := event.Data["agent"].(string); ok && agent != "" {
			for _, seen := range s.AgentsVisited {
				if seen == agent {
					return
				}
			}
			s.AgentsVisited = append(s.AgentsVisited, agent)
		}
	case EventEscalation:
		s.Escalated = true
	case EventError:
		s.ErrorCount++
	}
}
