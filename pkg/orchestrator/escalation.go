package orchestrator

import (
	"fmt"
	"strings"

	"github.com/harun/tanya/pkg/trace"
)

// DetectTrigger scans a message and the session state for escalation
// triggers. Categories are checked in priority order: explicit human request,
// multi-intent complexity, repeated tool failure. The first match wins.
func (o *Orchestrator) DetectTrigger(sessionID, message string) (string, bool, error) {
	sess, err := o.store.Session(sessionID)
	if err != nil {
		return "", false, err
	}

	lowered := strings.ToLower(message)

	for _, keyword := range o.escalationKeywords {
		if strings.Contains(lowered, keyword) {
			return ReasonHumanRequest, true, nil
		}
	}
	for _, phrase := range o.triggerPhrases {
		if strings.Contains(lowered, phrase) {
			return ReasonHumanRequest, true, nil
		}
	}

	if sess.DistinctIntentCount() >= o.multiIntentThreshold {
		return ReasonMultiIntent, true, nil
	}

	if sess.FailedToolCallCount() >= o.toolFailureThreshold {
		return ReasonToolFailures, true, nil
	}

	return "", false, nil
}

// Escalate marks the session escalated with a built summary, traces the
// hand-off and returns the fixed escalation response. Escalation is terminal
// and exclusive: callers must not route or execute agents in the same turn.
// Callers escalating without a detected trigger may pass an empty reason;
// the catch-all reason is recorded instead.
func (o *Orchestrator) Escalate(sessionID, reason string) (*Escalation, error) {
	if reason == "" {
		reason = ReasonCannotProceed
	}

	summary := o.buildSummary(sessionID, reason)

	if err := o.store.Escalate(sessionID, reason, summary); err != nil {
		return nil, err
	}

	o.tracer.Append(sessionID, trace.EventEscalation, reason, map[string]interface{}{
		"reason": reason,
	})

	o.logger.Info().
		Str("session_id", sessionID).
		Str("reason", reason).
		Msg("Escalated to human operator")

	return &Escalation{
		Reason:   reason,
		Summary:  summary,
		Response: EscalationResponse,
	}, nil
}

// buildSummary assembles the hand-off summary for the human operator.
// Summary construction must never block escalation: on any failure it falls
// back to a minimal summary.
func (o *Orchestrator) buildSummary(sessionID, reason string) (summary string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("session_id", sessionID).
				Interface("panic", r).
				Msg("Escalation summary build failed")
			summary = fmt.Sprintf("Escalated: %s. Full context unavailable.", reason)
		}
	}()

	sess, err := o.store.Session(sessionID)
	if err != nil {
		return fmt.Sprintf("Escalated: %s. Full context unavailable.", reason)
	}

	var b strings.Builder

	customer := strings.TrimSpace(sess.Customer.FirstName + " " + sess.Customer.LastName)
	if customer == "" {
		customer = sess.Customer.Email
	}
	fmt.Fprintf(&b, "Customer: %s <%s>\n", customer, sess.Customer.Email)

	issueType := "unknown"
	if len(sess.Context.IntentHistory) > 0 {
		issueType = sess.Context.IntentHistory[0]
	}
	fmt.Fprintf(&b, "Issue type: %s\n", issueType)
	fmt.Fprintf(&b, "Reason: %s\n", reason)
	fmt.Fprintf(&b, "Messages: %d\n", len(sess.Messages))

	succeeded, failed := 0, 0
	for _, tc := range sess.ToolCalls {
		if tc.Result.Success {
			succeeded++
		} else {
			failed++
		}
	}
	fmt.Fprintf(&b, "Tool calls: %d ok, %d failed\n", succeeded, failed)

	if len(sess.Context.OrderNumbers) > 0 {
		fmt.Fprintf(&b, "Order numbers: %s\n", strings.Join(sess.Context.OrderNumbers, ", "))
	}

	b.WriteString("Recent messages:\n")
	start := len(sess.Messages) - 3
	if start < 0 {
		start = 0
	}
	for _, msg := range sess.Messages[start:] {
		fmt.Fprintf(&b, "  [%s] %s\n", msg.Role, truncate(msg.Content, 100))
	}

	return b.String()
}

// truncate shortens s to at most max runes. Customer messages are not
// ASCII-only, so cutting on bytes could split a rune mid-sequence.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
