package anthropic

import (
	"strings"

	"go.uber.org/zap"
)

// TokenUsage is the token accounting of one reply.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// PromptTokens is every input token of the request, cached or not.
func (u TokenUsage) PromptTokens() int64 {
	return u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// price is USD per million tokens.
type price struct {
	input, output float64
}

// familyPricing is matched against the model id so dated releases of a
// family share one entry.
var familyPricing = []struct {
	family string
	price  price
}{
	{"haiku", price{input: 1.00, output: 5.00}},
	{"sonnet", price{input: 3.00, output: 15.00}},
	{"opus", price{input: 15.00, output: 75.00}},
}

// Cache writes bill at 1.25x input and cache reads at 0.1x.
const (
	cacheWriteFactor = 1.25
	cacheReadFactor  = 0.10
)

// EstimateCost returns the estimated USD cost of u on model, or 0 for an
// unknown model family.
func (u TokenUsage) EstimateCost(model string) float64 {
	m := strings.ToLower(model)
	for _, fp := range familyPricing {
		if !strings.Contains(m, fp.family) {
			continue
		}
		in := fp.price.input / 1e6
		return float64(u.InputTokens)*in +
			float64(u.OutputTokens)*fp.price.output/1e6 +
			float64(u.CacheCreationInputTokens)*in*cacheWriteFactor +
			float64(u.CacheReadInputTokens)*in*cacheReadFactor
	}
	return 0
}

// LogCost logs token usage and estimated cost for one call.
func (u TokenUsage) LogCost(model, operation string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.String("operation", operation),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
