package scoring

import (
	"math"
	"testing"
)

func TestNewEngine_RejectsBadWeights(t *testing.T) {
	cases := []struct {
		name    string
		weights Weights
	}{
		{"sum below 100", Weights{Trend: 15, Competition: 25, Monetization: 20, Audience: 25, ContentOpportunity: 14}},
		{"sum above 100", Weights{Trend: 16, Competition: 25, Monetization: 20, Audience: 25, ContentOpportunity: 15}},
		{"all zero", Weights{}},
		{"negative weight", Weights{Trend: -10, Competition: 45, Monetization: 25, Audience: 25, ContentOpportunity: 15}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEngine(tc.weights); err == nil {
				t.Errorf("expected construction to fail for weights %+v", tc.weights)
			}
		})
	}
}

func TestNewEngine_AcceptsDefaultWeights(t *testing.T) {
	if sum := DefaultWeights().Sum(); sum != 100 {
		t.Fatalf("default weights sum to %g, want 100", sum)
	}
	if _, err := NewEngine(DefaultWeights()); err != nil {
		t.Fatalf("default weights rejected: %v", err)
	}
}

func scoresWithValues(trend, competition, monetization, audience, content float64) map[Category]CategoryScore {
	return map[Category]CategoryScore{
		CategoryTrend:              {Category: CategoryTrend, Value: trend},
		CategoryCompetition:        {Category: CategoryCompetition, Value: competition},
		CategoryMonetization:       {Category: CategoryMonetization, Value: monetization},
		CategoryAudience:           {Category: CategoryAudience, Value: audience},
		CategoryContentOpportunity: {Category: CategoryContentOpportunity, Value: content},
	}
}

func TestScore_DocumentedWeightedSum(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}

	// 15*0.8 + 25*0.6 + 20*0.5 + 25*0.7 + 15*0.4 = 60.5
	b := engine.Score(scoresWithValues(0.8, 0.6, 0.5, 0.7, 0.4))

	if math.Abs(b.Overall-60.5) > 1e-9 {
		t.Errorf("overall = %v, want 60.5", b.Overall)
	}
	if b.Tier != TierModerate {
		t.Errorf("tier = %s, want %s", b.Tier, TierModerate)
	}
}

func TestScore_Reproducible(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}

	in := scoresWithValues(0.31, 0.77, 0.12, 0.98, 0.55)
	first := engine.Score(in)
	for i := 0; i < 10; i++ {
		again := engine.Score(in)
		if again.Overall != first.Overall {
			t.Fatalf("run %d: overall %v != %v", i, again.Overall, first.Overall)
		}
	}
}

func TestScore_RangeBounds(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}

	if b := engine.Score(scoresWithValues(0, 0, 0, 0, 0)); b.Overall != 0 {
		t.Errorf("all-zero input scored %v, want 0", b.Overall)
	}
	if b := engine.Score(scoresWithValues(1, 1, 1, 1, 1)); b.Overall != 100 {
		t.Errorf("all-one input scored %v, want 100", b.Overall)
	}
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Tier
	}{
		{95, TierHighPotential},
		{90, TierHighPotential},
		{89.9, TierGood},
		{70, TierGood},
		{69.9, TierModerate},
		{50, TierModerate},
		{49.9, TierLow},
		{0, TierLow},
	}

	for _, tc := range cases {
		if got := TierFor(tc.score); got != tc.want {
			t.Errorf("TierFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
