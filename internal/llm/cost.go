package llm

// Pricing converts token usage into spend. Rates are per 1000 tokens and
// apply to total (prompt + completion) tokens.
type Pricing struct {
	CostPer1KTokens float64
}

// Cost returns (tokens / 1000) * rate.
func (p Pricing) Cost(tokens int) float64 {
	return (float64(tokens) / 1000.0) * p.CostPer1KTokens
}

// EstimateCost estimates spend for a number of messages at an assumed
// average token count per message.
func (p Pricing) EstimateCost(messages, avgTokensPerMessage int) float64 {
	return (float64(messages*avgTokensPerMessage) / 1000.0) * p.CostPer1KTokens
}
