package anthropic

// TokenUsage counts the tokens one call consumed, split by cache traffic.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// rate is per-million-token pricing in USD.
type rate struct {
	input  float64
	output float64
}

var pricing = map[string]rate{
	"claude-haiku-4-5-20251001":  {input: 0.80, output: 4.00},
	"claude-sonnet-4-5-20250929": {input: 3.00, output: 15.00},
	"claude-opus-4-6":            {input: 15.00, output: 75.00},
}

// Cache writes bill at a premium over plain input, cache reads at a
// fraction of it.
const (
	cacheWriteFactor = 1.25
	cacheReadFactor  = 0.1
)

// EstimateCost returns the call's estimated cost in USD, or 0 for models
// without a pricing entry.
func (u TokenUsage) EstimateCost(model string) float64 {
	r, ok := pricing[model]
	if !ok {
		return 0
	}
	perTok := 1e-6
	return float64(u.InputTokens)*r.input*perTok +
		float64(u.OutputTokens)*r.output*perTok +
		float64(u.CacheCreationInputTokens)*r.input*cacheWriteFactor*perTok +
		float64(u.CacheReadInputTokens)*r.input*cacheReadFactor*perTok
}
