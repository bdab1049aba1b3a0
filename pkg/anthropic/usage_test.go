package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	million := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}

	tests := []struct {
		model string
		want  float64
	}{
		{"claude-haiku-4-5-20251001", 6.00},
		{"claude-sonnet-4-5-20250929", 18.00},
		{"claude-opus-4-1", 90.00},
		{"unknown-model", 0},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.InDelta(t, tt.want, million.EstimateCost(tt.model), 0.001)
		})
	}
}

func TestEstimateCost_WithCache(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              500_000,
		OutputTokens:             100_000,
		CacheCreationInputTokens: 200_000,
		CacheReadInputTokens:     300_000,
	}
	// 0.5*3 + 0.1*15 + 0.2*3*1.25 + 0.3*3*0.1
	assert.InDelta(t, 3.84, usage.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
}

func TestPromptTokens(t *testing.T) {
	u := TokenUsage{InputTokens: 10, CacheCreationInputTokens: 200, CacheReadInputTokens: 3000, OutputTokens: 7}
	assert.Equal(t, int64(3210), u.PromptTokens())
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "parse_statements")
		TokenUsage{}.LogCost("unknown-model", "")
	})
}
