package scoring

import "fmt"

// Tier buckets an overall score for filtering and alerting. Tiers are
// display-only and never feed back into scoring.
type Tier string

const (
	TierHighPotential Tier = "high_potential" // >= 90
	TierGood          Tier = "good"           // 70-89
	TierModerate      Tier = "moderate"       // 50-69
	TierLow           Tier = "low"            // < 50
)

// TierFor returns the display tier for an overall score.
func TierFor(overall float64) Tier {
	switch {
	case overall >= 90:
		return TierHighPotential
	case overall >= 70:
		return TierGood
	case overall >= 50:
		return TierModerate
	default:
		return TierLow
	}
}

// Weights are the per-category score weights in points. They must sum
// to exactly 100.
type Weights struct {
	Trend              float64 `yaml:"trend" json:"trend"`
	Competition        float64 `yaml:"competition" json:"competition"`
	Monetization       float64 `yaml:"monetization" json:"monetization"`
	Audience           float64 `yaml:"audience" json:"audience"`
	ContentOpportunity float64 `yaml:"content_opportunity" json:"content_opportunity"`
}

// DefaultWeights returns the fixed production weight set.
func DefaultWeights() Weights {
	return Weights{
		Trend:              15,
		Competition:        25,
		Monetization:       20,
		Audience:           25,
		ContentOpportunity: 15,
	}
}

// For returns the weight for a category.
func (w Weights) For(c Category) float64 {
	switch c {
	case CategoryTrend:
		return w.Trend
	case CategoryCompetition:
		return w.Competition
	case CategoryMonetization:
		return w.Monetization
	case CategoryAudience:
		return w.Audience
	case CategoryContentOpportunity:
		return w.ContentOpportunity
	default:
		return 0
	}
}

// Sum returns the total weight in points.
func (w Weights) Sum() float64 {
	return w.Trend + w.Competition + w.Monetization + w.Audience + w.ContentOpportunity
}

// Validate rejects negative weights and any set not summing to 100.
func (w Weights) Validate() error {
	for _, c := range Categories() {
		if w.For(c) < 0 {
			return fmt.Errorf("weight %s is negative", c)
		}
	}
	if sum := w.Sum(); sum != 100 {
		return fmt.Errorf("weights sum to %g, must sum to exactly 100", sum)
	}
	return nil
}

// Breakdown is the transparent result of one scoring pass.
type Breakdown struct {
	Overall    float64                    `json:"overall"`
	Tier       Tier                       `json:"tier"`
	Categories map[Category]CategoryScore `json:"categories"`
}

// Engine combines normalized category scores into a fixed-weight
// composite. It holds no mutable state: identical inputs always yield
// an identical breakdown.
type Engine struct {
	weights Weights
}

// NewEngine validates the weight set and creates a scoring engine.
func NewEngine(w Weights) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring weights: %w", err)
	}
	return &Engine{weights: w}, nil
}

// Weights returns the engine's weight set.
func (e *Engine) Weights() Weights { return e.weights }

// Score computes overall = sum over categories of weight * value,
// with values in [0,1] and weights summing to 100, so the composite is
// always in [0,100].
func (e *Engine) Score(scores map[Category]CategoryScore) Breakdown {
	b := Breakdown{Categories: make(map[Category]CategoryScore, len(scores))}
	for _, c := range Categories() {
		s := scores[c]
		b.Categories[c] = s
		b.Overall += e.weights.For(c) * s.Value
	}
	b.Tier = TierFor(b.Overall)
	return b
}
