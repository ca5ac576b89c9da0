package resilience

// Decision is the action a caller should take for a given confidence score.
type Decision string

const (
	DecisionProceed  Decision = "proceed"
	DecisionClarify  Decision = "clarify"
	DecisionFallback Decision = "fallback"
	DecisionEscalate Decision = "escalate"
)

// ConfidenceEvaluator maps a numeric confidence score to a decision via
// ordered thresholds. It is a policy hook alongside the orchestrator's own
// per-rule minimum-confidence gate, not a replacement for it.
type ConfidenceEvaluator struct {
	ProceedThreshold  float64
	ClarifyThreshold  float64
	FallbackThreshold float64
}

// NewConfidenceEvaluator returns an evaluator with the default thresholds.
func NewConfidenceEvaluator() *ConfidenceEvaluator {
	return &ConfidenceEvaluator{
		ProceedThreshold:  0.3,
		ClarifyThreshold:  0.2,
		FallbackThreshold: 0.1,
	}
}

// Evaluate maps score to a decision.
func (e *ConfidenceEvaluator) Evaluate(score float64) Decision {
	switch {
	case score >= e.ProceedThreshold:
		return DecisionProceed
	case score >= e.ClarifyThreshold:
		return DecisionClarify
	case score >= e.FallbackThreshold:
		return DecisionFallback
	default:
		return DecisionEscalate
	}
}
