package provider

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultTimeout is the hard per-call deadline for provider calls.
	DefaultTimeout = 30 * time.Second

	initialBackoff = 2 * time.Second
	maxBackoff     = 2 * time.Minute
)

// Stats are the running health numbers for a provider, updated on
// every call, success or failure.
type Stats struct {
	TotalRequests int64     `json:"total_requests"`
	SuccessCount  int64     `json:"success_count"`
	FailureCount  int64     `json:"failure_count"`
	AvgLatencyMS  float64   `json:"avg_latency_ms"`
	LastChecked   time.Time `json:"last_checked"`
}

// SuccessRate returns the fraction of calls that succeeded.
func (s Stats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.TotalRequests)
}

// Client wraps a Provider with a hard per-call timeout, health stats
// tracking and increasing backoff after rate limiting. It is safe for
// concurrent use.
type Client struct {
	provider Provider
	timeout  time.Duration

	mu        sync.Mutex
	stats     Stats
	backoff   time.Duration
	notBefore time.Time
}

// NewClient creates a stats-tracking client around a provider.
func NewClient(p Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{provider: p, timeout: timeout}
}

// ProviderName returns the wrapped provider's name.
func (c *Client) ProviderName() string { return c.provider.Name() }

// Stats returns a snapshot of the provider health stats.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Search expands a keyword into candidate refs, subject to the call
// timeout and backoff.
func (c *Client) Search(ctx context.Context, keyword string, limit int) (*SearchResult, error) {
	if err := c.waitBackoff(ctx); err != nil {
		return nil, &FetchError{Ref: keyword, At: time.Now().UTC(), Err: err}
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res, err := c.provider.Search(cctx, keyword, limit)
	if err = c.observe(start, cctx, err); err != nil {
		return nil, &FetchError{Ref: keyword, At: time.Now().UTC(), Err: err}
	}
	return res, nil
}

// Fetch retrieves metadata for a raw candidate reference. Bare names
// resolve as handle first, then canonical channel ID, then literal
// handle; only a NotFound falls through to the next form.
func (c *Client) Fetch(ctx context.Context, raw string) (*ChannelMetadata, error) {
	ref := ParseRef(raw)

	var lastErr error
	for _, attempt := range resolutionOrder(ref) {
		meta, err := c.fetchOnce(ctx, attempt)
		if err == nil {
			return meta, nil
		}
		lastErr = err
		if !errors.Is(err, ErrNotFound) {
			break
		}
	}
	return nil, &FetchError{Ref: raw, At: time.Now().UTC(), Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, ref CandidateRef) (*ChannelMetadata, error) {
	if err := c.waitBackoff(ctx); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	meta, err := c.provider.Fetch(cctx, ref)
	if err = c.observe(start, cctx, err); err != nil {
		return nil, err
	}
	return meta, nil
}

// resolutionOrder lists the surface forms to try for a ref. Handles
// and canonical IDs are unambiguous; bare names fall back in order.
func resolutionOrder(ref CandidateRef) []CandidateRef {
	if ref.Kind != RefName {
		return []CandidateRef{ref}
	}
	return []CandidateRef{
		{Raw: "@" + ref.Raw, Kind: RefHandle},
		{Raw: ref.Raw, Kind: RefChannelID},
		{Raw: ref.Raw, Kind: RefHandle},
	}
}

// observe updates health stats and normalizes the returned error.
func (c *Client) observe(start time.Time, ctx context.Context, err error) error {
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		err = ErrTimeout
	}

	latency := float64(time.Since(start).Milliseconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalRequests++
	c.stats.LastChecked = time.Now().UTC()
	if c.stats.AvgLatencyMS == 0 {
		c.stats.AvgLatencyMS = latency
	} else {
		// Exponential moving average keeps the number cheap to update.
		c.stats.AvgLatencyMS = c.stats.AvgLatencyMS*0.9 + latency*0.1
	}

	if err != nil {
		c.stats.FailureCount++
		if errors.Is(err, ErrRateLimited) {
			if c.backoff == 0 {
				c.backoff = initialBackoff
			} else if c.backoff < maxBackoff {
				c.backoff *= 2
			}
			c.notBefore = time.Now().Add(c.backoff)
		}
		return err
	}

	c.stats.SuccessCount++
	c.backoff = 0
	c.notBefore = time.Time{}
	return nil
}

// waitBackoff blocks until the rate-limit backoff window has passed or
// the context is done.
func (c *Client) waitBackoff(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.notBefore)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
