// Package scoring implements the mocked deal-scoring endpoint: a
// deterministic win-probability model with an optional seedable noise term.
package scoring

import (
	"math"
	"math/rand"
	"sync"

	"github.com/piyachat/chainflow/pipeline"
)

// industryBonus is the fixed per-industry adjustment to the base
// probability.
var industryBonus = map[string]float64{
	"Technology": 0.2,
	"Healthcare": 0.15,
	"Finance":    0.1,
	"Retail":     0.05,
}

// productLadder maps an industry to its three-tier product offering,
// ordered high tier first.
var productLadder = map[string][3]string{
	"Technology": {"Cloud Security", "API Manager", "Data Warehouse"},
	"Healthcare": {"Patient Portal", "Analytics Platform", "Compliance Suite"},
	"Finance":    {"Trading Platform", "Risk Assessment", "Fraud Detection"},
}

var defaultLadder = [3]string{"CRM Enterprise", "Analytics Suite", "Support Package"}

// Scorer computes win probabilities. With a nil noise source the output is
// a pure function of the opportunity.
type Scorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewScorer returns a scorer with noise drawn from the given seed.
func NewScorer(seed int64) *Scorer {
	return &Scorer{rng: rand.New(rand.NewSource(seed))}
}

// NewDeterministicScorer returns a scorer with the noise term disabled.
func NewDeterministicScorer() *Scorer {
	return &Scorer{}
}

// Score enriches one opportunity. Base probability 0.5, adjusted by an
// amount penalty (capped at 0.3), the industry bonus, and the noise term,
// then clamped to [0.1, 0.9] and rounded to two decimals.
func (s *Scorer) Score(opp pipeline.Opportunity) pipeline.Opportunity {
	amountFactor := math.Max(0, math.Min(0.3, 1-opp.Amount/1_000_000))
	prob := 0.5 + amountFactor + industryBonus[opp.Industry] + s.noise()
	prob = math.Max(0.1, math.Min(0.9, prob))
	prob = math.Round(prob*100) / 100

	opp.WinProbability = prob
	opp.NextBestProduct = productFor(opp.Industry, prob)
	return opp
}

// ScoreAll scores a batch one record at a time, preserving input order.
func (s *Scorer) ScoreAll(opportunities []pipeline.Opportunity) []pipeline.Opportunity {
	scored := make([]pipeline.Opportunity, 0, len(opportunities))
	for _, opp := range opportunities {
		scored = append(scored, s.Score(opp))
	}
	return scored
}

func (s *Scorer) noise() float64 {
	if s.rng == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return -0.1 + s.rng.Float64()*0.2
}

// productFor picks the next-best product from the industry ladder by
// probability band. Pure function of its inputs.
func productFor(industry string, prob float64) string {
	ladder, ok := productLadder[industry]
	if !ok {
		ladder = defaultLadder
	}
	switch {
	case prob > 0.7:
		return ladder[0]
	case prob > 0.4:
		return ladder[1]
	default:
		return ladder[2]
	}
}
