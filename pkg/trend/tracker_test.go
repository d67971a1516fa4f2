package trend

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/nicheradar/nicheradar/internal/store"
)

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "trend.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecord_AppendsOnePointPerPass(t *testing.T) {
	ctx := context.Background()
	db := testStore(t)
	tracker := NewTracker(db, DefaultWindow)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := tracker.Record(ctx, "UCaaaaaaaaaaaaaaaaaaaaaa", 60+float64(i), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	count, err := db.CountTrendPoints(ctx, "UCaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("recorded %d points over 5 passes, want 5", count)
	}

	points, err := db.GetTrendPoints(ctx, "UCaaaaaaaaaaaaaaaaaaaaaa", 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(points); i++ {
		if points[i].RecordedAt.Before(points[i-1].RecordedAt) {
			t.Errorf("points out of order at %d: %v before %v", i, points[i].RecordedAt, points[i-1].RecordedAt)
		}
	}
}

func TestRecord_MomentumAndVolatility(t *testing.T) {
	ctx := context.Background()
	db := testStore(t)
	tracker := NewTracker(db, DefaultWindow)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var last *store.TrendPoint
	for i, score := range []float64{1, 2, 3, 4, 5} {
		p, err := tracker.Record(ctx, "UCbbbbbbbbbbbbbbbbbbbbbb", score, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		last = p
	}

	// Momentum over [1..5] is last minus first.
	if last.Momentum != 4 {
		t.Errorf("momentum = %v, want 4", last.Momentum)
	}
	// Population stddev of 1..5 is sqrt(2).
	if math.Abs(last.Volatility-math.Sqrt2) > 1e-9 {
		t.Errorf("volatility = %v, want %v", last.Volatility, math.Sqrt2)
	}
	if last.Delta != 1 {
		t.Errorf("delta = %v, want 1", last.Delta)
	}
}

func TestRecord_WindowExcludesOlderPoints(t *testing.T) {
	ctx := context.Background()
	db := testStore(t)
	tracker := NewTracker(db, 3)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var last *store.TrendPoint
	for i, score := range []float64{10, 20, 30, 40, 50} {
		p, err := tracker.Record(ctx, "UCcccccccccccccccccccccc", score, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		last = p
	}

	// Window of 3 sees only [30, 40, 50].
	if last.Momentum != 20 {
		t.Errorf("momentum = %v, want 20 (trailing window of 3)", last.Momentum)
	}
	if last.Confidence != 1 {
		t.Errorf("confidence = %v, want 1 at full window", last.Confidence)
	}
}

func TestSeries_PartialWindowReducesConfidence(t *testing.T) {
	ctx := context.Background()
	db := testStore(t)
	tracker := NewTracker(db, DefaultWindow)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range []float64{50, 55} {
		if _, err := tracker.Record(ctx, "UCdddddddddddddddddddddd", score, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	series, err := tracker.Series(ctx, "UCdddddddddddddddddddddd", 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(series.Points) != 2 {
		t.Fatalf("series has %d points, want 2", len(series.Points))
	}
	want := 2.0 / float64(DefaultWindow)
	if math.Abs(series.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v with 2 of %d points", series.Confidence, want, DefaultWindow)
	}
	if series.Momentum != 5 {
		t.Errorf("momentum = %v, want 5", series.Momentum)
	}
	if series.Direction != DirectionRising {
		t.Errorf("direction = %s, want %s", series.Direction, DirectionRising)
	}
}

func TestSeries_EmptyNiche(t *testing.T) {
	ctx := context.Background()
	db := testStore(t)
	tracker := NewTracker(db, DefaultWindow)

	series, err := tracker.Series(ctx, "UCeeeeeeeeeeeeeeeeeeeeee", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Points) != 0 || series.Momentum != 0 || series.Confidence != 0 {
		t.Errorf("empty niche series = %+v, want zeroes", series)
	}
	if series.Direction != DirectionFlat {
		t.Errorf("direction = %s, want %s", series.Direction, DirectionFlat)
	}
}

func TestDirectionFor_DeadZone(t *testing.T) {
	cases := []struct {
		momentum float64
		want     Direction
	}{
		{5, DirectionRising},
		{2.1, DirectionRising},
		{2.0, DirectionFlat},
		{0, DirectionFlat},
		{-2.0, DirectionFlat},
		{-2.1, DirectionFalling},
		{-12, DirectionFalling},
	}

	for _, tc := range cases {
		if got := DirectionFor(tc.momentum); got != tc.want {
			t.Errorf("DirectionFor(%v) = %s, want %s", tc.momentum, got, tc.want)
		}
	}
}
