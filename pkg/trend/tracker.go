package trend

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nicheradar/nicheradar/internal/store"
)

// DefaultWindow is the trailing window, in scoring passes, over which
// momentum and volatility are derived.
const DefaultWindow = 7

// deadZone is the momentum magnitude below which direction reports
// flat, to avoid flapping on noise near zero.
const deadZone = 2.0

// Direction labels the sign of momentum over the trailing window.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionFlat    Direction = "flat"
)

// Series is the trailing trend view for one niche.
type Series struct {
	NicheID    string             `json:"niche_id"`
	Points     []store.TrendPoint `json:"points"`
	Momentum   float64            `json:"momentum"`
	Volatility float64            `json:"volatility"`
	Direction  Direction          `json:"direction"`
	Confidence float64            `json:"confidence"`
}

// Tracker appends one trend point per scoring pass per niche and
// derives momentum and volatility over a trailing window. Points are
// never edited or removed once written.
type Tracker struct {
	store  store.Store
	window int
}

// NewTracker creates a trend tracker over the given store.
func NewTracker(s store.Store, window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{store: s, window: window}
}

// Window returns the trailing window size in passes.
func (t *Tracker) Window() int { return t.window }

// Record appends exactly one point for a scoring pass. Delta, momentum
// and volatility are derived from the trailing window including the
// new score.
func (t *Tracker) Record(ctx context.Context, nicheID string, overall float64, ts time.Time) (*store.TrendPoint, error) {
	prior, err := t.store.GetTrendPoints(ctx, nicheID, t.window-1)
	if err != nil {
		return nil, fmt.Errorf("load trend window %s: %w", nicheID, err)
	}

	scores := make([]float64, 0, len(prior)+1)
	for _, p := range prior {
		scores = append(scores, p.Overall)
	}
	scores = append(scores, overall)

	point := &store.TrendPoint{
		NicheID:    nicheID,
		RecordedAt: ts.UTC(),
		PeriodType: "pass",
		Overall:    overall,
		Momentum:   momentum(scores),
		Volatility: volatility(scores),
		Confidence: math.Min(1, float64(len(scores))/float64(t.window)),
	}
	if len(prior) > 0 {
		point.Delta = overall - prior[len(prior)-1].Overall
	}

	if err := t.store.AppendTrendPoint(ctx, point); err != nil {
		return nil, err
	}
	return point, nil
}

// Series returns the trailing series for a niche. Fewer recorded
// points than the window uses all available points with reduced
// confidence.
func (t *Tracker) Series(ctx context.Context, nicheID string, window int) (*Series, error) {
	if window <= 0 {
		window = t.window
	}

	points, err := t.store.GetTrendPoints(ctx, nicheID, window)
	if err != nil {
		return nil, fmt.Errorf("load trend series %s: %w", nicheID, err)
	}

	scores := make([]float64, len(points))
	for i, p := range points {
		scores[i] = p.Overall
	}

	m := momentum(scores)
	return &Series{
		NicheID:    nicheID,
		Points:     points,
		Momentum:   m,
		Volatility: volatility(scores),
		Direction:  DirectionFor(m),
		Confidence: math.Min(1, float64(len(points))/float64(window)),
	}, nil
}

// DirectionFor maps momentum to a direction using the dead-zone
// threshold.
func DirectionFor(momentum float64) Direction {
	switch {
	case momentum > deadZone:
		return DirectionRising
	case momentum < -deadZone:
		return DirectionFalling
	default:
		return DirectionFlat
	}
}

// momentum is the score delta across the window: last minus first.
func momentum(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	return scores[len(scores)-1] - scores[0]
}

// volatility is the population standard deviation over the window.
func volatility(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}

	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	return math.Sqrt(variance)
}
