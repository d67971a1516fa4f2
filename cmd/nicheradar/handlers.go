package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nicheradar/nicheradar/internal/cache"
	"github.com/nicheradar/nicheradar/internal/config"
	"github.com/nicheradar/nicheradar/internal/scheduler"
	"github.com/nicheradar/nicheradar/internal/store"
	"github.com/nicheradar/nicheradar/pkg/alert"
	"github.com/nicheradar/nicheradar/pkg/discovery"
	"github.com/nicheradar/nicheradar/pkg/provider"
	"github.com/nicheradar/nicheradar/pkg/scoring"
	"github.com/nicheradar/nicheradar/pkg/server"
	"github.com/nicheradar/nicheradar/pkg/trend"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// buildOrchestrator wires the engine: one client, one cache, one
// scoring engine and one tracker, all explicitly owned by the
// orchestrator.
func buildOrchestrator(cfg *config.Config, db store.Store) (*discovery.Orchestrator, *cache.Cache, error) {
	engine, err := scoring.NewEngine(cfg.Scoring.Weights)
	if err != nil {
		return nil, nil, err
	}

	yt := provider.NewYouTube(cfg.Provider.YouTube.APIKey, cfg.Provider.YouTube.MaxResults)
	client := provider.NewClient(yt, cfg.Provider.YouTube.ParseTimeout())

	responseCache := cache.New(
		config.ParseTTL(cfg.Cache.ChannelTTL, cache.DefaultChannelTTL),
		config.ParseTTL(cfg.Cache.SearchTTL, cache.DefaultSearchTTL),
		config.ParseTTL(cfg.Cache.RateLimitTTL, cache.DefaultRateLimitTTL),
	)

	tracker := trend.NewTracker(db, cfg.Trend.Window)
	orch := discovery.New(client, responseCache, db, engine, tracker,
		cfg.Discovery.Concurrency, cfg.Discovery.MaxCandidates)

	return orch, responseCache, nil
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runDiscover(seeds []string, target int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(seeds) == 0 {
		seeds = cfg.Discovery.Seeds
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	orch, responseCache, err := buildOrchestrator(cfg, db)
	if err != nil {
		return err
	}
	defer responseCache.Close()

	result, err := orch.Discover(context.Background(), seeds, target)
	if err != nil {
		return fmt.Errorf("discovery run: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(os.Stderr, "run %s: %d discovered, %d high-potential, %d failed in %s\n",
		result.RunID, result.DiscoveredCount, result.HighPotentialCount,
		result.FailedCount, result.Elapsed.Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tTIER\tNICHE\tREF")
	for _, c := range result.Candidates {
		fmt.Fprintf(w, "%.1f\t%s\t%s\t%s\n",
			c.Breakdown.Overall, c.Breakdown.Tier, c.Name, c.Ref)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, f := range result.Failures {
		fmt.Fprintf(os.Stderr, "skipped %s: %s\n", f.Ref, f.Kind)
	}
	return nil
}

func runNiches(jsonOutput bool, minScore float64, limit int, includeInactive bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	niches, err := db.ListNiches(context.Background(), store.NicheListOpts{
		MinScore:   minScore,
		ActiveOnly: !includeInactive,
		Limit:      limit,
	})
	if err != nil {
		return fmt.Errorf("list niches: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(niches)
	}

	if len(niches) == 0 {
		fmt.Println("no niches found (try a discovery run first: nicheradar discover --seed 'cooking tutorials')")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tTIER\tNAME\tID\tLAST UPDATED")
	for _, n := range niches {
		fmt.Fprintf(w, "%.1f\t%s\t%s\t%s\t%s\n",
			n.OverallScore, scoring.TierFor(n.OverallScore), n.Name, n.ID,
			n.LastUpdated.Format(time.RFC3339))
	}
	return w.Flush()
}

func runTrend(nicheID string, window int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	tracker := trend.NewTracker(db, cfg.Trend.Window)
	series, err := tracker.Series(context.Background(), nicheID, window)
	if err != nil {
		return fmt.Errorf("load trend: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(series)
	}

	fmt.Printf("niche %s: %s (momentum %+.1f, volatility %.1f, confidence %.2f)\n",
		series.NicheID, series.Direction, series.Momentum, series.Volatility, series.Confidence)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECORDED\tSCORE\tDELTA")
	for _, p := range series.Points {
		fmt.Fprintf(w, "%s\t%.1f\t%+.1f\n",
			p.RecordedAt.Format(time.RFC3339), p.Overall, p.Delta)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	orch, responseCache, err := buildOrchestrator(cfg, db)
	if err != nil {
		return err
	}
	defer responseCache.Close()

	srv := server.New(db, orch, port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	orch, responseCache, err := buildOrchestrator(cfg, db)
	if err != nil {
		return err
	}
	defer responseCache.Close()

	alertMgr := buildAlertManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(orch, db, alertMgr,
		cfg.Discovery.Seeds,
		cfg.Discovery.MaxCandidates,
		cfg.Schedule.ParseDiscoverInterval(),
		cfg.Alerts.MinScore,
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	srv := server.New(db, orch, port)
	return srv.ListenAndServe()
}
