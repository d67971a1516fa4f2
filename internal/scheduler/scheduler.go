package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nicheradar/nicheradar/internal/store"
	"github.com/nicheradar/nicheradar/pkg/alert"
	"github.com/nicheradar/nicheradar/pkg/discovery"
)

// Scheduler runs periodic discovery passes over the configured seeds.
type Scheduler struct {
	orch     *discovery.Orchestrator
	store    store.Store
	alertMgr *alert.Manager
	seeds    []string
	target   int
	interval time.Duration
	minScore float64
}

// New creates a new scheduler.
func New(
	orch *discovery.Orchestrator,
	s store.Store,
	alertMgr *alert.Manager,
	seeds []string,
	target int,
	interval time.Duration,
	minScore float64,
) *Scheduler {
	if interval == 0 {
		interval = 6 * time.Hour
	}
	if minScore == 0 {
		minScore = 90
	}
	return &Scheduler{
		orch:     orch,
		store:    s,
		alertMgr: alertMgr,
		seeds:    seeds,
		target:   target,
		interval: interval,
		minScore: minScore,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.seeds) == 0 {
		return fmt.Errorf("scheduler: no discovery seeds configured")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	fmt.Fprintln(os.Stderr, "scheduler: initial discovery run...")
	s.runOnce(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (discover every %s)\n", s.interval)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			fmt.Fprintln(os.Stderr, "scheduler: discovering...")
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.orch.Discover(ctx, s.seeds, s.target)
	if err != nil {
		if errors.Is(err, discovery.ErrRunInProgress) {
			fmt.Fprintln(os.Stderr, "  run still in progress, skipping")
			return
		}
		fmt.Fprintf(os.Stderr, "  discovery error: %v\n", err)
		return
	}

	fmt.Fprintf(os.Stderr, "  discovered %d niches (%d high-potential, %d failed) in %s\n",
		result.DiscoveredCount, result.HighPotentialCount, result.FailedCount, result.Elapsed.Round(time.Millisecond))

	if !s.alertMgr.HasNotifiers() {
		return
	}

	for _, c := range result.Candidates {
		if c.Breakdown.Overall < s.minScore {
			continue
		}

		notification := &alert.Notification{
			NicheID: c.NicheID,
			Name:    c.Name,
			Score:   c.Breakdown.Overall,
			Tier:    c.Breakdown.Tier,
			Body:    fmt.Sprintf("Scored %.1f in discovery run %s", c.Breakdown.Overall, result.RunID),
		}
		if niche, err := s.store.GetNiche(ctx, c.NicheID); err == nil {
			notification.Keywords = niche.Keywords
		}

		if err := s.alertMgr.Broadcast(ctx, notification); err != nil {
			fmt.Fprintf(os.Stderr, "  alert error for %q: %v\n", c.Name, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  alerted: %s (score: %.1f)\n", c.Name, c.Breakdown.Overall)
	}
}
