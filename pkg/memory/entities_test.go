package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOrderNumbers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "hash prefix",
			text: "Where is my order #1234567?",
			want: []string{"#1234567"},
		},
		{
			name: "NP prefix",
			text: "Order NP20240123 never arrived",
			want: []string{"NP20240123"},
		},
		{
			name: "multiple in one message keep order",
			text: "I have #1111 and NP222222 pending",
			want: []string{"#1111", "NP222222"},
		},
		{
			name: "duplicates removed",
			text: "#1234567 and again #1234567",
			want: []string{"#1234567"},
		},
		{
			name: "too few digits",
			text: "seat #123 row 4",
			want: nil,
		},
		{
			name: "no match",
			text: "I want to cancel my subscription",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractOrderNumbers(tt.text))
		})
	}
}

func TestAppendOrderNumbers_Cap(t *testing.T) {
	existing := []string{"#1111111", "#2222222"}
	out := appendOrderNumbers(existing, []string{"#3333333", "#4444444"}, 3)
	assert.Equal(t, []string{"#1111111", "#2222222", "#3333333"}, out)

	// Already-known numbers pass through the cap check unchanged.
	out = appendOrderNumbers(out, []string{"#1111111"}, 3)
	assert.Len(t, out, 3)
}
