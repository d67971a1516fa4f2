package scoring

import (
	"math"
	"time"

	"github.com/nicheradar/nicheradar/pkg/provider"
)

// Category is one of the five scoring dimensions.
type Category string

const (
	CategoryTrend              Category = "trend"
	CategoryCompetition        Category = "competition"
	CategoryMonetization       Category = "monetization"
	CategoryAudience           Category = "audience"
	CategoryContentOpportunity Category = "content_opportunity"
)

// Categories returns all scoring categories in canonical order.
func Categories() []Category {
	return []Category{
		CategoryTrend,
		CategoryCompetition,
		CategoryMonetization,
		CategoryAudience,
		CategoryContentOpportunity,
	}
}

// Fixed normalization constants. Changing any of these changes every
// score in the system, so they are compile-time values covered by
// tests, not configuration.
const (
	audienceCeiling     = 10_000_000 // subscribers at which the log curve saturates
	competitionScale    = 25.0       // search results at which opportunity halves
	monetizationCeiling = 100_000.0  // avg recent views at which the curve saturates
	trendRatioCeiling   = 2.0        // recent views at 2x channel baseline = 1.0
	cadenceMidpoint     = 3.0        // uploads/week at which saturation halves
	minUploadSample     = 3          // uploads needed for full cadence confidence
	confidenceFloor     = 0.5        // low confidence discounts, never zeroes
)

// CategoryScore is one normalized observation for a category.
type CategoryScore struct {
	Category   Category `json:"category"`
	MetricType string   `json:"metric_type"`
	Raw        float64  `json:"raw"`
	Normalized float64  `json:"normalized"` // curve output in [0,1]
	Confidence float64  `json:"confidence"` // data completeness in [0,1]
	Value      float64  `json:"value"`      // confidence-discounted contribution in [0,1]
}

// Normalizer maps raw channel metadata onto [0,1] category scores with
// a confidence weight per category. All curves are deterministic and
// monotonic in their raw inputs.
type Normalizer struct{}

// Normalize produces one CategoryScore per scoring category.
func (Normalizer) Normalize(meta *provider.ChannelMetadata) map[Category]CategoryScore {
	return map[Category]CategoryScore{
		CategoryAudience:           normalizeAudience(meta),
		CategoryCompetition:        normalizeCompetition(meta),
		CategoryTrend:              normalizeTrend(meta),
		CategoryMonetization:       normalizeMonetization(meta),
		CategoryContentOpportunity: normalizeContentOpportunity(meta),
	}
}

// normalizeAudience maps subscriber count through a saturating log
// curve: diminishing returns above the ceiling.
func normalizeAudience(meta *provider.ChannelMetadata) CategoryScore {
	raw := float64(meta.Subscribers)
	s := CategoryScore{Category: CategoryAudience, MetricType: "subscriber_count", Raw: raw}
	if raw <= 0 {
		return s
	}
	s.Normalized = clamp01(math.Log10(1+raw) / math.Log10(1+audienceCeiling))
	s.Confidence = 1
	s.Value = discount(s.Normalized, s.Confidence)
	return s
}

// normalizeCompetition inverts keyword result density: more competing
// results mean less opportunity. Candidates fetched directly (no
// originating keyword) have no density observation.
func normalizeCompetition(meta *provider.ChannelMetadata) CategoryScore {
	s := CategoryScore{Category: CategoryCompetition, MetricType: "search_density", Raw: float64(meta.SearchDensity)}
	if meta.Keyword == "" {
		return s
	}
	s.Normalized = 1 / (1 + s.Raw/competitionScale)
	s.Confidence = 1
	s.Value = discount(s.Normalized, s.Confidence)
	return s
}

// normalizeTrend compares recent-upload views against the channel's
// lifetime average views per video.
func normalizeTrend(meta *provider.ChannelMetadata) CategoryScore {
	s := CategoryScore{Category: CategoryTrend, MetricType: "view_velocity", Raw: meta.AvgRecentViews}
	if meta.AvgRecentViews <= 0 || meta.VideoCount <= 0 || meta.TotalViews <= 0 {
		return s
	}
	baseline := float64(meta.TotalViews) / float64(meta.VideoCount)
	ratio := meta.AvgRecentViews / baseline
	s.Normalized = clamp01(ratio / trendRatioCeiling)
	s.Confidence = math.Min(1, float64(len(meta.RecentUploads))/6.0)
	s.Value = discount(s.Normalized, s.Confidence)
	return s
}

// normalizeMonetization scores revenue potential from average recent
// views on a log curve, boosted by engagement rate.
func normalizeMonetization(meta *provider.ChannelMetadata) CategoryScore {
	s := CategoryScore{Category: CategoryMonetization, MetricType: "avg_recent_views", Raw: meta.AvgRecentViews}
	if meta.AvgRecentViews <= 0 {
		return s
	}
	base := clamp01(math.Log10(1+meta.AvgRecentViews) / math.Log10(1+monetizationCeiling))
	engagement := clamp01(meta.EngagementRate * 20)
	s.Normalized = base * (0.7 + 0.3*engagement)
	s.Confidence = math.Min(1, float64(len(meta.RecentUploads))/minUploadSample)
	s.Value = discount(s.Normalized, s.Confidence)
	return s
}

// normalizeContentOpportunity inverts upload cadence: a niche whose
// incumbents publish rarely has room for new content. Cadence comes
// from the span of the recent-uploads feed, measured against the fetch
// time so the result is reproducible for a given observation.
func normalizeContentOpportunity(meta *provider.ChannelMetadata) CategoryScore {
	s := CategoryScore{Category: CategoryContentOpportunity, MetricType: "upload_cadence"}
	n := len(meta.RecentUploads)
	if n == 0 {
		return s
	}

	oldest := meta.RecentUploads[0].PublishedAt
	for _, u := range meta.RecentUploads {
		if u.PublishedAt.Before(oldest) {
			oldest = u.PublishedAt
		}
	}
	ref := meta.FetchedAt
	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	weeks := ref.Sub(oldest).Hours() / (24 * 7)
	if weeks < 1 {
		weeks = 1
	}
	perWeek := float64(n) / weeks

	s.Raw = perWeek
	s.Normalized = 1 / (1 + perWeek/cadenceMidpoint)
	s.Confidence = math.Min(1, float64(n)/minUploadSample)
	s.Value = discount(s.Normalized, s.Confidence)
	return s
}

// discount applies the confidence weight to a normalized value. Low
// confidence shrinks the contribution toward half, never to zero; a
// zero-confidence category contributes nothing.
func discount(normalized, confidence float64) float64 {
	if confidence <= 0 {
		return 0
	}
	return normalized * (confidenceFloor + (1-confidenceFloor)*confidence)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
