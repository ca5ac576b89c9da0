package agentexec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/harun/tanya/pkg/memory"
)

// buildSystemPrompt layers session context onto the agent's base prompt:
// customer identity, extracted order numbers, cached tool results and the
// agent's boundary rules. Cached tool data goes in verbatim so the model can
// answer follow-ups without re-calling tools.
func (e *Executor) buildSystemPrompt(agent Agent, sess *memory.Session) string {
	var b strings.Builder

	b.WriteString(agent.SystemPrompt)

	customer := strings.TrimSpace(sess.Customer.FirstName + " " + sess.Customer.LastName)
	if customer != "" || sess.Customer.Email != "" {
		b.WriteString("\n\n## Customer\n")
		if customer != "" {
			fmt.Fprintf(&b, "Name: %s\n", customer)
		}
		if sess.Customer.Email != "" {
			fmt.Fprintf(&b, "Email: %s\n", sess.Customer.Email)
		}
		if sess.Customer.ExternalCustomerID != "" {
			fmt.Fprintf(&b, "Customer ID: %s\n", sess.Customer.ExternalCustomerID)
		}
	}

	if len(sess.Context.OrderNumbers) > 0 {
		b.WriteString("\n## Known order numbers\n")
		b.WriteString(strings.Join(sess.Context.OrderNumbers, ", "))
		b.WriteString("\n")
	}

	if len(sess.Context.ToolData) > 0 {
		b.WriteString("\n## Previously retrieved data\n")
		handles := make([]string, 0, len(sess.Context.ToolData))
		for handle := range sess.Context.ToolData {
			handles = append(handles, handle)
		}
		sort.Strings(handles)
		for _, handle := range handles {
			fmt.Fprintf(&b, "- %s: %s\n", handle, compactJSON(sess.Context.ToolData[handle]))
		}
	}

	if len(agent.BoundaryRules) > 0 {
		b.WriteString("\n## Boundaries\n")
		for _, rule := range agent.BoundaryRules {
			fmt.Fprintf(&b, "- %s\n", rule)
		}
	}

	return b.String()
}

func compactJSON(value interface{}) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}
