package relationship

import (
	"fmt"
	"strings"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

const maxRulesChars = 500

// systemPrompt pins the oracle to the four proposal shapes. The response
// must be a bare JSON array; anything else is salvaged best-effort.
const systemPrompt = `You are an analyst of binary prediction markets. Given a list of markets, identify logical constraints between them.

Report only these four constraint types, as a JSON array:

1. SUBSET: market A's YES outcome is a strict subset of market B's YES outcome, so P(A) <= P(B) must hold.
   {"type": "SUBSET", "subset_ticker": "...", "superset_ticker": "...", "confidence": 0.0-1.0, "reasoning": "..."}

2. THRESHOLD: markets on the same underlying quantity with ascending cutoffs, so probabilities must be non-increasing.
   {"type": "THRESHOLD", "tickers_ascending": ["...", "..."], "confidence": 0.0-1.0, "reasoning": "..."}

3. PARTITION: markets whose YES outcomes are mutually exclusive and exhaustive, so their probabilities must sum to 1.
   {"type": "PARTITION", "tickers": ["...", "..."], "confidence": 0.0-1.0, "reasoning": "..."}

4. IMPLICATION: market A's YES makes market B's YES very likely (A implies B with some probability).
   {"type": "IMPLICATION", "if_ticker": "...", "then_ticker": "...", "estimated_conditional_prob": 0.0-1.0, "confidence": 0.0-1.0, "reasoning": "..."}

Rules:
- Use only tickers from the provided list, exactly as written.
- Only report constraints you are confident follow from the settlement rules, not from opinion.
- Confidence below 0.6 is not worth reporting.
- Respond with the JSON array only. No prose, no code fences. Respond [] if there are none.`

// BuildPrompt renders one market batch for the oracle. Settlement rules
// are truncated so a large batch stays inside the context budget.
func BuildPrompt(markets []types.Market) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Markets (%d):\n\n", len(markets))
	for i := range markets {
		m := &markets[i]
		fmt.Fprintf(&b, "- ticker: %s\n", m.Ticker)
		fmt.Fprintf(&b, "  title: %s\n", m.Title)
		if m.Subtitle != "" {
			fmt.Fprintf(&b, "  subtitle: %s\n", m.Subtitle)
		}
		if m.Category != "" {
			fmt.Fprintf(&b, "  category: %s\n", m.Category)
		}
		fmt.Fprintf(&b, "  yes_ask: %.2f yes_bid: %.2f\n", m.YesAsk, m.YesBid)
		if m.RulesPrimary != "" {
			rules := m.RulesPrimary
			if len(rules) > maxRulesChars {
				rules = rules[:maxRulesChars]
			}
			fmt.Fprintf(&b, "  rules: %s\n", rules)
		}
	}
	return b.String()
}
