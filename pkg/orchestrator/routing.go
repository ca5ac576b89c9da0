package orchestrator

import (
	"strings"

	"github.com/harun/tanya/pkg/resilience"
	"github.com/harun/tanya/pkg/trace"
)

// Route classifies the message, scores every routing rule and records the
// chosen agent and intent into the session context. A routing trace event is
// emitted only when the agent actually changes.
func (o *Orchestrator) Route(sessionID, message string) (*Decision, error) {
	sess, err := o.store.Session(sessionID)
	if err != nil {
		return nil, err
	}

	result := o.classifier.Classify(message)

	decision := &Decision{
		Intent:     result.Primary,
		Confidence: result.Confidence,
	}

	policy := o.confidence.Evaluate(result.Confidence)
	if result.Primary == "" || policy != resilience.DecisionProceed {
		// Routing ambiguity resolves via the fallback agent, never by
		// re-running classification.
		decision.AgentID = o.routing.FallbackAgent
		decision.UsedFallback = true
	} else {
		agentID, score, qualified := o.scoreRules(message, result.Primary, result.Secondary)
		decision.RuleScore = score
		if qualified {
			decision.AgentID = agentID
		} else {
			decision.AgentID = o.routing.FallbackAgent
			decision.UsedFallback = true
		}
	}

	// Continuity override: when the current agent's trigger vocabulary shares
	// a stem with the new intent, stay put instead of hopping mid-topic.
	if sess.Context.CurrentAgent != "" && decision.AgentID != sess.Context.CurrentAgent {
		if current, ok := o.agents[sess.Context.CurrentAgent]; ok &&
			sharesStem(current.TriggerPhrases, result.Primary) {
			decision.AgentID = sess.Context.CurrentAgent
			decision.UsedFallback = false
			decision.Sticky = true
		}
	}

	previous, err := o.store.SetRouting(sessionID, decision.AgentID, result.Primary)
	if err != nil {
		return nil, err
	}
	decision.AgentChanged = previous != decision.AgentID

	if decision.AgentChanged {
		o.tracer.Append(sessionID, trace.EventRouting, "routed to "+decision.AgentID, map[string]interface{}{
			"agent":      decision.AgentID,
			"intent":     result.Primary,
			"confidence": result.Confidence,
			"score":      decision.RuleScore,
			"fallback":   decision.UsedFallback,
		})
	}

	o.logger.Debug().
		Str("session_id", sessionID).
		Str("agent", decision.AgentID).
		Str("intent", result.Primary).
		Float64("score", decision.RuleScore).
		Bool("sticky", decision.Sticky).
		Msg("Message routed")

	return decision, nil
}

// scoreRules computes 0.2 per keyword match, 0.5 for a primary intent match
// and 0.2 for any secondary intent match, capped at 1.0. A rule qualifies
// only when its score reaches its configured minimum confidence.
func (o *Orchestrator) scoreRules(message, primary string, secondary []string) (agentID string, bestScore float64, qualified bool) {
	lowered := strings.ToLower(message)

	for _, rule := range o.routing.Rules {
		score := 0.0
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				score += 0.2
			}
		}
		if rule.IntentID == primary {
			score += 0.5
		}
		for _, sec := range secondary {
			if rule.IntentID == sec {
				score += 0.2
				break
			}
		}
		if score > 1.0 {
			score = 1.0
		}

		minConfidence := rule.MinConfidence
		if minConfidence <= 0 {
			minConfidence = o.defaultMinConfidence
		}
		if score < minConfidence {
			continue
		}
		if !qualified || score > bestScore {
			agentID = rule.TargetAgent
			bestScore = score
			qualified = true
		}
	}

	return agentID, bestScore, qualified
}

// sharesStem reports whether any word in the trigger phrases shares a stem
// with any token of the intent id. Stems are compared as 4-character
// prefixes, long enough to match "order"/"orders" without matching across
// topics.
func sharesStem(phrases []string, intentID string) bool {
	if intentID == "" {
		return false
	}

	intentTokens := strings.Split(strings.ToLower(intentID), "_")

	for _, phrase := range phrases {
		for _, word := range strings.Fields(strings.ToLower(phrase)) {
			for _, token := range intentTokens {
				if stemEqual(word, token) {
					return true
				}
			}
		}
	}
	return false
}

func stemEqual(a, b string) bool {
	const stemLen = 4
	if len(a) < stemLen || len(b) < stemLen {
		return a == b
	}
	return a[:stemLen] == b[:stemLen]
}
