package intent

import (
	"sort"
	"strings"
)

// Category ids produced by the default table.
const (
	CategoryHumanEscalation    = "HUMAN_ESCALATION"
	CategoryOrderStatus        = "ORDER_STATUS"
	CategoryOrderCancel        = "ORDER_CANCEL"
	CategorySubscriptionCancel = "SUBSCRIPTION_CANCEL"
	CategorySubscriptionPause  = "SUBSCRIPTION_PAUSE"
	CategoryReturnRefund       = "RETURN_REFUND"
	CategoryShippingIssue      = "SHIPPING_ISSUE"
	CategoryBillingIssue       = "BILLING_ISSUE"
	CategoryProductQuestion    = "PRODUCT_QUESTION"
)

// CategorySpec declares one intent category: its keyword set and its static
// priority rank used to break score ties. Lower rank wins; escalation intents
// rank highest.
type CategorySpec struct {
	ID       string   `json:"id" mapstructure:"id"`
	Keywords []string `json:"keywords" mapstructure:"keywords"`
	Priority int      `json:"priority" mapstructure:"priority"`
}

// Result is the outcome of classifying one message.
type Result struct {
	Primary    string         `json:"primary"`
	Secondary  []string       `json:"secondary,omitempty"`
	Confidence float64        `json:"confidence"`
	Scores     map[string]int `json:"scores,omitempty"`
}

// Classifier infers coarse intent categories from message text. Kept as an
// interface so a model-based classifier can replace the keyword table without
// touching the orchestrator.
type Classifier interface {
	Classify(text string) Result
}

// TableClassifier scores categories by summed keyword-length weight over the
// lower-cased message text; multi-word keywords naturally score higher than
// single-word matches.
type TableClassifier struct {
	specs    []CategorySpec
	maxScore map[string]int
}

// NewTableClassifier compiles a classifier from category specs.
func NewTableClassifier(specs []CategorySpec) *TableClassifier {
	maxScore := make(map[string]int, len(specs))
	for _, spec := range specs {
		longest := 0
		for _, kw := range spec.Keywords {
			if len(kw) > longest {
				longest = len(kw)
			}
		}
		maxScore[spec.ID] = longest
	}
	return &TableClassifier{specs: specs, maxScore: maxScore}
}

// NewDefaultClassifier returns a classifier over the built-in table.
func NewDefaultClassifier() *TableClassifier {
	return NewTableClassifier(DefaultTable())
}

// Classify scores every category against the message.
func (c *TableClassifier) Classify(text string) Result {
	lowered := strings.ToLower(text)

	scores := make(map[string]int, len(c.specs))
	for _, spec := range c.specs {
		score := 0
		for _, kw := range spec.Keywords {
			if strings.Contains(lowered, kw) {
				score += len(kw)
			}
		}
		if score > 0 {
			scores[spec.ID] = score
		}
	}

	if len(scores) == 0 {
		return Result{Scores: scores}
	}

	ranked := make([]CategorySpec, 0, len(scores))
	for _, spec := range c.specs {
		if scores[spec.ID] > 0 {
			ranked = append(ranked, spec)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ID], scores[ranked[j].ID]
		if si != sj {
			return si > sj
		}
		return ranked[i].Priority < ranked[j].Priority
	})

	primary := ranked[0].ID
	secondary := make([]string, 0, 3)
	for _, spec := range ranked[1:] {
		if len(secondary) == 3 {
			break
		}
		secondary = append(secondary, spec.ID)
	}

	// Confidence normalizes against the longest keyword of the winning
	// category, so one full-phrase match scores near 1.0 and a glancing
	// short-keyword match scores low. Multiple matches cap at 1.0.
	confidence := 0.0
	if max := c.maxScore[primary]; max > 0 {
		confidence = float64(scores[primary]) / float64(max)
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	return Result{
		Primary:    primary,
		Secondary:  secondary,
		Confidence: confidence,
		Scores:     scores,
	}
}

// DefaultTable returns the built-in category table.
func DefaultTable() []CategorySpec {
	return []CategorySpec{
		{
			ID:       CategoryHumanEscalation,
			Priority: 1,
			Keywords: []string{"human", "manager", "supervisor", "real person", "live agent"},
		},
		{
			ID:       CategoryOrderStatus,
			Priority: 2,
			Keywords: []string{"where is my order", "order status", "track my order", "tracking number", "when will it arrive", "delivery update"},
		},
		{
			ID:       CategoryOrderCancel,
			Priority: 3,
			Keywords: []string{"cancel my order", "cancel the order", "stop my order"},
		},
		{
			ID:       CategorySubscriptionCancel,
			Priority: 4,
			Keywords: []string{"cancel my subscription", "cancel subscription", "unsubscribe", "stop my subscription", "end my subscription"},
		},
		{
			ID:       CategorySubscriptionPause,
			Priority: 5,
			Keywords: []string{"pause my subscription", "skip my next", "pause subscription", "skip a month"},
		},
		{
			ID:       CategoryReturnRefund,
			Priority: 6,
			Keywords: []string{"refund", "return my", "money back", "send it back"},
		},
		{
			ID:       CategoryShippingIssue,
			Priority: 7,
			Keywords: []string{"never arrived", "lost package", "damaged", "wrong item", "missing item"},
		},
		{
			ID:       CategoryBillingIssue,
			Priority: 8,
			Keywords: []string{"charged twice", "overcharged", "billing", "charge on my card"},
		},
		{
			ID:       CategoryProductQuestion,
			Priority: 9,
			Keywords: []string{"how do i use", "ingredients", "which product", "recommend"},
		},
	}
}
