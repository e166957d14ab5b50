package relationship

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

// proposal is the oracle's wire shape. One struct covers all four
// variants; Type selects which fields matter.
type proposal struct {
	Type string `json:"type"`

	SubsetTicker   string `json:"subset_ticker"`
	SupersetTicker string `json:"superset_ticker"`

	TickersAscending []string `json:"tickers_ascending"`

	Tickers []string `json:"tickers"`

	IfTicker                 string  `json:"if_ticker"`
	ThenTicker               string  `json:"then_ticker"`
	EstimatedConditionalProb float64 `json:"estimated_conditional_prob"`

	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// normalize converts a raw proposal into the relationship schema. known
// restricts tickers to the batch the oracle was shown; anything outside it
// is a hallucination and rejects the proposal.
func (p *proposal) normalize(known map[string]bool, now time.Time) (*types.Relationship, error) {
	if p.Confidence < 0 || p.Confidence > 1 {
		return nil, fmt.Errorf("confidence %.3f outside [0, 1]", p.Confidence)
	}

	rel := &types.Relationship{
		ID:            uuid.NewString(),
		Confidence:    p.Confidence,
		Reasoning:     p.Reasoning,
		CreatedAt:     now,
		LastValidated: now,
	}

	switch strings.ToUpper(p.Type) {
	case types.RelSubset:
		if p.SubsetTicker == "" || p.SupersetTicker == "" || p.SubsetTicker == p.SupersetTicker {
			return nil, fmt.Errorf("subset proposal needs two distinct tickers")
		}
		rel.Type = types.RelSubset
		rel.Tickers = []string{p.SubsetTicker, p.SupersetTicker}
		rel.Description = fmt.Sprintf("P(%s) <= P(%s)", p.SubsetTicker, p.SupersetTicker)
		rel.Formula = rel.Description

	case types.RelThreshold:
		if len(p.TickersAscending) < 2 {
			return nil, fmt.Errorf("threshold proposal needs at least 2 tickers, got %d", len(p.TickersAscending))
		}
		rel.Type = types.RelThreshold
		rel.Tickers = p.TickersAscending
		terms := make([]string, len(p.TickersAscending))
		for i, t := range p.TickersAscending {
			terms[i] = fmt.Sprintf("P(%s)", t)
		}
		rel.Description = strings.Join(terms, " >= ")
		rel.Formula = rel.Description

	case types.RelPartition:
		if len(p.Tickers) < 2 {
			return nil, fmt.Errorf("partition proposal needs at least 2 tickers, got %d", len(p.Tickers))
		}
		rel.Type = types.RelPartition
		rel.Tickers = p.Tickers
		rel.Description = fmt.Sprintf("SUM(P(%s)) ≈ 1.00", strings.Join(p.Tickers, ", "))
		rel.Formula = "SUM_EQUALS_1"

	case types.RelImplication:
		if p.IfTicker == "" || p.ThenTicker == "" || p.IfTicker == p.ThenTicker {
			return nil, fmt.Errorf("implication proposal needs two distinct tickers")
		}
		if p.EstimatedConditionalProb < 0 || p.EstimatedConditionalProb > 1 {
			return nil, fmt.Errorf("conditional probability %.3f outside [0, 1]", p.EstimatedConditionalProb)
		}
		rel.Type = types.RelImplication
		rel.Tickers = []string{p.IfTicker, p.ThenTicker}
		rel.Description = fmt.Sprintf("P(%s | %s) ≈ %.2f", p.ThenTicker, p.IfTicker, p.EstimatedConditionalProb)
		rel.Formula = fmt.Sprintf("IMPLIES(%s,%s,%.2f)", p.IfTicker, p.ThenTicker, p.EstimatedConditionalProb)

	default:
		return nil, fmt.Errorf("unrecognized variant %q", p.Type)
	}

	for _, t := range rel.Tickers {
		if !known[t] {
			return nil, fmt.Errorf("ticker %q not in the analyzed batch", t)
		}
	}

	return rel, nil
}
