package trace

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Report renders a human-readable multi-line view of a session's trace. The
// timeline remains the source of truth; the report is derived.
func (t *Tracer) Report(sessionID string) (string, error) {
	tr, err := t.Trace(sessionID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", tr.SessionID)
	fmt.Fprintf(&b, "  events: %d  messages: %d  tool calls: %d (%d ok, %d failed)\n",
		len(tr.Events), tr.Summary.MessageCount, tr.Summary.ToolCallCount,
		tr.Summary.ToolSuccesses, tr.Summary.ToolFailures)
	fmt.Fprintf(&b, "  agents: %s  escalated: %v  duration: %s\n",
		joinOrDash(tr.Summary.AgentsVisited), tr.Summary.Escalated,
		tr.Summary.Duration.Round(time.Millisecond))
	b.WriteString("\n")

	for _, event := range tr.Events {
		fmt.Fprintf(&b, "  %s  %-11s %s\n",
			event.Timestamp.Format("15:04:05.000"), event.Type, event.Detail)
	}

	return b.String(), nil
}

// Export returns the full timeline plus summary as indented JSON.
func (t *Tracer) Export(sessionID string) ([]byte, error) {
	tr, err := t.Trace(sessionID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(tr, "", "  ")
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
