package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nicheradar/nicheradar/internal/cache"
	"github.com/nicheradar/nicheradar/internal/store"
	"github.com/nicheradar/nicheradar/pkg/provider"
	"github.com/nicheradar/nicheradar/pkg/scoring"
	"github.com/nicheradar/nicheradar/pkg/trend"
)

// State is the phase of a discovery run.
type State string

const (
	StateIdle        State = "idle"
	StateEnumerating State = "enumerating"
	StateFetching    State = "fetching"
	StateScoring     State = "scoring"
	StatePersisting  State = "persisting"
	StateComplete    State = "complete"
	StateFailed      State = "failed"
)

var (
	// ErrRunInProgress rejects a second discovery request while one is
	// active; runs are never executed concurrently.
	ErrRunInProgress = errors.New("discovery run already in progress")
	// ErrEmptySeeds rejects a run with nothing to discover.
	ErrEmptySeeds = errors.New("empty seed list")
)

const (
	// DefaultConcurrency bounds parallel fetches in a run.
	DefaultConcurrency = 5
	// DefaultMaxCandidates bounds the enumerated candidate list.
	DefaultMaxCandidates = 50

	// deactivateStreak is the number of consecutive failed validation
	// passes after which a known niche is soft-deactivated.
	deactivateStreak = 3
)

// Candidate is one enumerated, deduplicated niche reference awaiting
// fetch and scoring.
type Candidate struct {
	Ref     string // reference passed to the provider
	Key     string // canonical dedupe key
	Keyword string // originating keyword, if expanded from a seed
	Density int64  // keyword search density
}

// CandidateReport is the per-candidate outcome of a run.
type CandidateReport struct {
	Ref       string            `json:"ref"`
	NicheID   string            `json:"niche_id"`
	Name      string            `json:"name"`
	Breakdown scoring.Breakdown `json:"breakdown"`
}

// Failure records one skipped candidate with enough context for the
// caller to decide whether to retry.
type Failure struct {
	Ref     string    `json:"ref"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Result summarizes a discovery run.
type Result struct {
	RunID              string            `json:"run_id"`
	State              State             `json:"state"`
	Seeds              []string          `json:"seeds"`
	DiscoveredCount    int               `json:"discovered_count"`
	HighPotentialCount int               `json:"high_potential_count"`
	FailedCount        int               `json:"failed_count"`
	Candidates         []CandidateReport `json:"candidates"`
	Failures           []Failure         `json:"failures,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	Elapsed            time.Duration     `json:"elapsed"`
}

// Orchestrator drives a full discovery run: enumerate candidates,
// fetch metadata through the cache under bounded concurrency, score,
// record trend points and persist ranked niches. It owns its cache and
// metadata client; only one run is in flight at a time.
type Orchestrator struct {
	client        *provider.Client
	cache         *cache.Cache
	store         store.Store
	normalizer    scoring.Normalizer
	engine        *scoring.Engine
	tracker       *trend.Tracker
	concurrency   int
	maxCandidates int

	mu      sync.Mutex
	running bool
	state   State
}

// New creates a discovery orchestrator.
func New(client *provider.Client, c *cache.Cache, s store.Store, engine *scoring.Engine, tracker *trend.Tracker, concurrency, maxCandidates int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Orchestrator{
		client:        client,
		cache:         c,
		store:         s,
		engine:        engine,
		tracker:       tracker,
		concurrency:   concurrency,
		maxCandidates: maxCandidates,
		state:         StateIdle,
	}
}

// State returns the current run phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// ScoreMetadata normalizes and scores a single metadata observation
// without touching persistence.
func (o *Orchestrator) ScoreMetadata(meta *provider.ChannelMetadata) scoring.Breakdown {
	return o.engine.Score(o.normalizer.Normalize(meta))
}

// Trend returns the trailing trend series for a niche.
func (o *Orchestrator) Trend(ctx context.Context, nicheID string, window int) (*trend.Series, error) {
	return o.tracker.Series(ctx, nicheID, window)
}

// Discover runs the full pipeline over the given seeds. Per-candidate
// failures are recorded and skipped; the run fails only when no
// candidate at all could be fetched.
func (o *Orchestrator) Discover(ctx context.Context, seeds []string, target int) (*Result, error) {
	if len(seeds) == 0 {
		return nil, ErrEmptySeeds
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	result := &Result{
		RunID:     uuid.NewString(),
		Seeds:     seeds,
		StartedAt: time.Now().UTC(),
	}
	fail := func(err error) (*Result, error) {
		o.setState(StateFailed)
		result.State = StateFailed
		result.Elapsed = time.Since(result.StartedAt)
		return result, err
	}

	o.setState(StateEnumerating)
	candidates := o.enumerate(ctx, seeds, target)
	if len(candidates) == 0 {
		return fail(fmt.Errorf("run %s: no candidates from %d seeds", result.RunID, len(seeds)))
	}

	o.setState(StateFetching)
	fetched, failures := o.fetchAll(ctx, candidates)
	result.Failures = failures
	result.FailedCount = len(failures)
	if len(fetched) == 0 {
		return fail(fmt.Errorf("run %s: provider unreachable, all %d candidates failed", result.RunID, len(candidates)))
	}
	fetched = dedupeByIdentity(fetched)

	o.setState(StateScoring)
	scored := make([]scoredCandidate, 0, len(fetched))
	for _, fc := range fetched {
		scored = append(scored, scoredCandidate{
			candidate: fc.candidate,
			meta:      fc.meta,
			keywords:  fc.keywords,
			breakdown: o.engine.Score(o.normalizer.Normalize(fc.meta)),
		})
	}

	o.setState(StatePersisting)
	if err := o.persist(ctx, result, scored, candidates, failures); err != nil {
		return fail(err)
	}

	sort.Slice(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Breakdown.Overall > result.Candidates[j].Breakdown.Overall
	})

	o.setState(StateComplete)
	result.State = StateComplete
	result.Elapsed = time.Since(result.StartedAt)
	return result, nil
}

type fetchedCandidate struct {
	candidate Candidate
	meta      *provider.ChannelMetadata
	keywords  []string
}

type scoredCandidate struct {
	candidate Candidate
	meta      *provider.ChannelMetadata
	keywords  []string
	breakdown scoring.Breakdown
}

// enumerate expands seeds into a bounded candidate list deduplicated
// by canonical identity. Keyword seeds go through the cached search;
// a failed expansion drops the seed, not the run.
func (o *Orchestrator) enumerate(ctx context.Context, seeds []string, target int) []Candidate {
	limit := target
	if limit <= 0 || limit > o.maxCandidates {
		limit = o.maxCandidates
	}

	seen := make(map[string]bool)
	var out []Candidate

	add := func(c Candidate) bool {
		if seen[c.Key] {
			return len(out) < limit
		}
		seen[c.Key] = true
		out = append(out, c)
		return len(out) < limit
	}

	for _, seed := range seeds {
		if len(out) >= limit {
			break
		}

		if !provider.IsKeyword(seed) {
			ref := provider.ParseRef(seed)
			add(Candidate{Ref: seed, Key: canonicalKey(ref)})
			continue
		}

		v, err := o.cache.GetOrFetch(ctx, cache.OpSearch, seed, func(ctx context.Context) (any, error) {
			return o.client.Search(ctx, seed, limit)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "  seed %q expansion error: %v\n", seed, err)
			continue
		}

		res := v.(*provider.SearchResult)
		for _, ref := range res.Refs {
			if !add(Candidate{
				Ref:     ref.Raw,
				Key:     canonicalKey(ref),
				Keyword: seed,
				Density: res.TotalResults,
			}) {
				break
			}
		}
	}

	return out
}

// fetchAll retrieves metadata for every candidate through the cache on
// a bounded worker pool. Individual failures are collected, never
// propagated as group errors.
func (o *Orchestrator) fetchAll(ctx context.Context, candidates []Candidate) ([]fetchedCandidate, []Failure) {
	var (
		mu       sync.Mutex
		fetched  []fetchedCandidate
		failures []Failure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, cand := range candidates {
		cand := cand
		g.Go(func() error {
			v, err := o.cache.GetOrFetch(gctx, cache.OpChannel, cand.Ref, func(ctx context.Context) (any, error) {
				return o.client.Fetch(ctx, cand.Ref)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, failureFrom(cand.Ref, err))
				return nil
			}

			// Copy before attaching per-candidate keyword context; the
			// cached value is shared across callers.
			meta := *v.(*provider.ChannelMetadata)
			fc := fetchedCandidate{candidate: cand, meta: &meta}
			if cand.Keyword != "" {
				meta.Keyword = cand.Keyword
				meta.SearchDensity = cand.Density
				fc.keywords = []string{cand.Keyword}
			}
			fetched = append(fetched, fc)
			return nil
		})
	}
	g.Wait()

	return fetched, failures
}

// dedupeByIdentity collapses candidates whose surface forms resolved to
// the same channel, so one niche gets exactly one scoring pass per run
// no matter how many seeds pointed at it. The first observation wins;
// keyword context merges.
func dedupeByIdentity(fetched []fetchedCandidate) []fetchedCandidate {
	index := make(map[string]int, len(fetched))
	out := make([]fetchedCandidate, 0, len(fetched))

	for _, fc := range fetched {
		id := fc.meta.ChannelID
		if id == "" {
			id = fc.candidate.Key
		}
		if i, ok := index[id]; ok {
			out[i].keywords = mergeKeywords(out[i].keywords, fc.keywords)
			if out[i].meta.Keyword == "" && fc.meta.Keyword != "" {
				out[i].meta = fc.meta
			}
			continue
		}
		index[id] = len(out)
		out = append(out, fc)
	}
	return out
}

// persist upserts niches by canonical identity, appends metrics and
// trend points, bumps failure streaks and saves provider health.
func (o *Orchestrator) persist(ctx context.Context, result *Result, scored []scoredCandidate, candidates []Candidate, failures []Failure) error {
	now := time.Now().UTC()

	for _, sc := range scored {
		niche, err := o.buildNiche(ctx, sc, now)
		if err != nil {
			return err
		}
		if err := o.store.UpsertNiche(ctx, niche); err != nil {
			return err
		}

		for _, c := range scoring.Categories() {
			cs := sc.breakdown.Categories[c]
			metric := &store.Metric{
				NicheID:         niche.ID,
				SourceID:        o.client.ProviderName(),
				MetricType:      cs.MetricType,
				RawValue:        cs.Raw,
				NormalizedValue: cs.Normalized,
				Confidence:      cs.Confidence,
				CollectedAt:     now,
				Period:          "recent",
			}
			if metric.MetricType == "" {
				metric.MetricType = string(c)
			}
			if err := o.store.AddMetric(ctx, metric); err != nil {
				return err
			}
		}

		if _, err := o.tracker.Record(ctx, niche.ID, sc.breakdown.Overall, now); err != nil {
			return err
		}

		result.Candidates = append(result.Candidates, CandidateReport{
			Ref:       sc.candidate.Ref,
			NicheID:   niche.ID,
			Name:      niche.Name,
			Breakdown: sc.breakdown,
		})
		if sc.breakdown.Tier == scoring.TierHighPotential {
			result.HighPotentialCount++
		}
	}
	result.DiscoveredCount = len(scored)

	o.recordFailureStreaks(ctx, candidates, failures)

	stats := o.client.Stats()
	src := &store.Source{
		ID:            o.client.ProviderName(),
		Name:          o.client.ProviderName(),
		TotalRequests: stats.TotalRequests,
		SuccessCount:  stats.SuccessCount,
		FailureCount:  stats.FailureCount,
		AvgLatencyMS:  stats.AvgLatencyMS,
		LastChecked:   stats.LastChecked,
	}
	if src.LastChecked.IsZero() {
		src.LastChecked = now
	}
	if err := o.store.UpsertSource(ctx, src); err != nil {
		return err
	}

	return nil
}

// buildNiche creates or refreshes the niche record for a scored
// candidate, keeping the original discovery time and keyword set of an
// existing record.
func (o *Orchestrator) buildNiche(ctx context.Context, sc scoredCandidate, now time.Time) (*store.Niche, error) {
	id := sc.meta.ChannelID
	if id == "" {
		id = sc.candidate.Key
	}

	niche := &store.Niche{
		ID:           id,
		Name:         sc.meta.Title,
		Keywords:     sc.keywords,
		Category:     sc.meta.Category,
		DiscoveredAt: now,
		LastUpdated:  now,
		IsActive:     true,
		IsValidated:  true,
	}
	// Remember the seed form so later failed passes can find the record
	// even though it is stored under the canonical channel ID.
	if sc.candidate.Key != id {
		niche.Alias = sc.candidate.Key
	}

	existing, err := o.store.GetNiche(ctx, id)
	switch {
	case err == nil:
		niche.DiscoveredAt = existing.DiscoveredAt
		niche.Keywords = mergeKeywords(existing.Keywords, niche.Keywords)
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, err
	}

	cats := sc.breakdown.Categories
	niche.TrendScore = cats[scoring.CategoryTrend].Value * 100
	niche.CompetitionScore = cats[scoring.CategoryCompetition].Value * 100
	niche.MonetizationScore = cats[scoring.CategoryMonetization].Value * 100
	niche.AudienceScore = cats[scoring.CategoryAudience].Value * 100
	niche.ContentScore = cats[scoring.CategoryContentOpportunity].Value * 100
	niche.OverallScore = sc.breakdown.Overall

	return niche, nil
}

// recordFailureStreaks bumps validation failure streaks for known
// niches whose candidates failed this run and deactivates any past the
// streak threshold. History is preserved either way.
func (o *Orchestrator) recordFailureStreaks(ctx context.Context, candidates []Candidate, failures []Failure) {
	keyByRef := make(map[string]string, len(candidates))
	for _, c := range candidates {
		keyByRef[c.Ref] = c.Key
	}

	for _, f := range failures {
		key, ok := keyByRef[f.Ref]
		if !ok {
			continue
		}
		// Handle and name seeds are stored under their resolved channel
		// ID; the alias maps the seed form back to the record.
		nicheID := key
		if _, err := o.store.GetNiche(ctx, key); err != nil {
			known, err := o.store.GetNicheByAlias(ctx, key)
			if err != nil {
				continue
			}
			nicheID = known.ID
		}
		streak, err := o.store.RecordNicheFailure(ctx, nicheID)
		if err != nil {
			continue
		}
		if streak >= deactivateStreak {
			if err := o.store.DeactivateNiche(ctx, nicheID); err == nil {
				fmt.Fprintf(os.Stderr, "  deactivated niche %s after %d failed passes\n", nicheID, streak)
			}
		}
	}
}

func failureFrom(ref string, err error) Failure {
	f := Failure{
		Ref:     ref,
		Kind:    provider.Kind(err),
		At:      time.Now().UTC(),
		Message: err.Error(),
	}
	var fe *provider.FetchError
	if errors.As(err, &fe) {
		f.At = fe.At
	}
	return f
}

// canonicalKey derives the dedupe identity for a ref. Channel IDs are
// case-sensitive and pass through; handles and names fold case.
func canonicalKey(ref provider.CandidateRef) string {
	if ref.Kind == provider.RefChannelID {
		return ref.Raw
	}
	return strings.ToLower(ref.ID())
}

func mergeKeywords(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(added))
	for _, k := range existing {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range added {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
