package provider

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// RefKind identifies the surface form of a candidate reference.
type RefKind string

const (
	RefHandle    RefKind = "handle"     // @-prefixed channel handle
	RefChannelID RefKind = "channel_id" // canonical UC... channel ID
	RefName      RefKind = "name"       // bare name, resolution order applies
)

// CandidateRef is a single candidate channel reference in one of its
// surface forms.
type CandidateRef struct {
	Raw  string
	Kind RefKind
}

// ID returns the reference without surface decoration (leading @).
func (r CandidateRef) ID() string {
	return strings.TrimPrefix(r.Raw, "@")
}

var channelIDPattern = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)

// ParseRef classifies a raw candidate string. "@handle" is a handle,
// a UC-prefixed 24-char token is a canonical channel ID, everything
// else is a bare name resolved by the client's fallback order.
func ParseRef(raw string) CandidateRef {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "@"):
		return CandidateRef{Raw: raw, Kind: RefHandle}
	case channelIDPattern.MatchString(raw):
		return CandidateRef{Raw: raw, Kind: RefChannelID}
	default:
		return CandidateRef{Raw: raw, Kind: RefName}
	}
}

// IsKeyword reports whether a discovery seed should be expanded via
// search instead of fetched directly. Multi-word seeds are search
// keywords; single tokens are treated as channel references.
func IsKeyword(seed string) bool {
	seed = strings.TrimSpace(seed)
	if strings.HasPrefix(seed, "@") || channelIDPattern.MatchString(seed) {
		return false
	}
	return strings.ContainsAny(seed, " \t")
}

// Upload is one recent video from a channel's uploads feed.
type Upload struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// ChannelMetadata is the raw observation for one candidate channel,
// combining channel statistics, recent-upload activity and the search
// density of the keyword that surfaced the candidate (if any).
type ChannelMetadata struct {
	ChannelID      string    `json:"channel_id"`
	Handle         string    `json:"handle,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Category       string    `json:"category,omitempty"`
	Subscribers    int64     `json:"subscribers"`
	TotalViews     int64     `json:"total_views"`
	VideoCount     int64     `json:"video_count"`
	RecentUploads  []Upload  `json:"recent_uploads,omitempty"`
	AvgRecentViews float64   `json:"avg_recent_views"`
	EngagementRate float64   `json:"engagement_rate"`
	Keyword        string    `json:"keyword,omitempty"`
	SearchDensity  int64     `json:"search_density"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// SearchResult is the outcome of a keyword expansion: candidate
// channel refs plus the total result density for the keyword.
type SearchResult struct {
	Keyword      string
	Refs         []CandidateRef
	TotalResults int64
}

// Provider fetches channel metadata from an external video platform.
// Implementations must map transport failures onto the sentinel errors
// in errors.go.
type Provider interface {
	Name() string
	Search(ctx context.Context, keyword string, limit int) (*SearchResult, error)
	Fetch(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error)
}
