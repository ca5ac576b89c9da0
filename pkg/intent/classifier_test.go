package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableClassifier_Classify(t *testing.T) {
	classifier := NewDefaultClassifier()

	t.Run("order status question", func(t *testing.T) {
		result := classifier.Classify("Where is my order #1234567?")

		assert.Equal(t, CategoryOrderStatus, result.Primary)
		assert.Greater(t, result.Confidence, 0.0)
	})

	t.Run("subscription cancel", func(t *testing.T) {
		result := classifier.Classify("I want to cancel my subscription")

		assert.Equal(t, CategorySubscriptionCancel, result.Primary)
	})

	t.Run("human escalation", func(t *testing.T) {
		result := classifier.Classify("I want to speak to a human")

		assert.Equal(t, CategoryHumanEscalation, result.Primary)
	})

	t.Run("no match", func(t *testing.T) {
		result := classifier.Classify("good morning")

		assert.Empty(t, result.Primary)
		assert.Zero(t, result.Confidence)
	})

	t.Run("case insensitive", func(t *testing.T) {
		result := classifier.Classify("WHERE IS MY ORDER?")

		assert.Equal(t, CategoryOrderStatus, result.Primary)
	})
}

func TestTableClassifier_MultiWordWeighting(t *testing.T) {
	classifier := NewTableClassifier([]CategorySpec{
		{ID: "SHORT", Priority: 1, Keywords: []string{"order"}},
		{ID: "LONG", Priority: 2, Keywords: []string{"where is my order"}},
	})

	// Both match, but the multi-word keyword weighs its full length.
	result := classifier.Classify("where is my order")
	assert.Equal(t, "LONG", result.Primary)
	assert.Equal(t, []string{"SHORT"}, result.Secondary)
}

func TestTableClassifier_TieBreakByPriority(t *testing.T) {
	classifier := NewTableClassifier([]CategorySpec{
		{ID: "LOW", Priority: 9, Keywords: []string{"abcde"}},
		{ID: "HIGH", Priority: 1, Keywords: []string{"vwxyz"}},
	})

	result := classifier.Classify("abcde vwxyz")
	assert.Equal(t, "HIGH", result.Primary)
}

func TestTableClassifier_SecondaryCapped(t *testing.T) {
	classifier := NewTableClassifier([]CategorySpec{
		{ID: "A", Priority: 1, Keywords: []string{"aaaaaa"}},
		{ID: "B", Priority: 2, Keywords: []string{"bbbbb"}},
		{ID: "C", Priority: 3, Keywords: []string{"cccc"}},
		{ID: "D", Priority: 4, Keywords: []string{"ddd"}},
		{ID: "E", Priority: 5, Keywords: []string{"ee"}},
	})

	result := classifier.Classify("aaaaaa bbbbb cccc ddd ee")
	assert.Equal(t, "A", result.Primary)
	assert.Len(t, result.Secondary, 3)
	assert.Equal(t, []string{"B", "C", "D"}, result.Secondary)
}

func TestTableClassifier_Confidence(t *testing.T) {
	classifier := NewTableClassifier([]CategorySpec{
		{ID: "X", Priority: 1, Keywords: []string{"just alpha", "beta!"}},
	})

	// Short keyword alone scores against the longest keyword: 5/10.
	result := classifier.Classify("beta! only")
	assert.InDelta(t, 0.5, result.Confidence, 0.001)

	// Longest keyword matched: full confidence.
	result = classifier.Classify("just alpha please")
	assert.InDelta(t, 1.0, result.Confidence, 0.001)

	// Both matched: capped at 1.0.
	result = classifier.Classify("just alpha and beta!")
	assert.InDelta(t, 1.0, result.Confidence, 0.001)
}
