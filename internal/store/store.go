package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Niche is a scored topical cluster, keyed by the canonical channel
// identity. Mutated in place on re-scoring, soft-deactivated (never
// deleted) when the provider repeatedly fails to validate it.
type Niche struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Keywords           []string  `db:"-" json:"keywords"`
	KeywordsJSON       string    `db:"keywords" json:"-"`
	Alias              string    `db:"alias" json:"alias,omitempty"`
	Category           string    `db:"category" json:"category"`
	TrendScore         float64   `db:"trend_score" json:"trend_score"`
	CompetitionScore   float64   `db:"competition_score" json:"competition_score"`
	MonetizationScore  float64   `db:"monetization_score" json:"monetization_score"`
	AudienceScore      float64   `db:"audience_score" json:"audience_score"`
	ContentScore       float64   `db:"content_score" json:"content_opportunity_score"`
	OverallScore       float64   `db:"overall_score" json:"overall_score"`
	DiscoveredAt       time.Time `db:"discovered_at" json:"discovered_at"`
	LastUpdated        time.Time `db:"last_updated" json:"last_updated"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	IsValidated        bool      `db:"is_validated" json:"is_validated"`
	FetchFailureStreak int       `db:"fetch_failure_streak" json:"-"`
}

// Source is the identity and running health of an external metadata
// provider. Mutated after every run, never deleted.
type Source struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	RateLimitPerMin int       `db:"rate_limit_per_min" json:"rate_limit_per_min"`
	TotalRequests   int64     `db:"total_requests" json:"total_requests"`
	SuccessCount    int64     `db:"success_count" json:"success_count"`
	FailureCount    int64     `db:"failure_count" json:"failure_count"`
	AvgLatencyMS    float64   `db:"avg_latency_ms" json:"avg_latency_ms"`
	LastChecked     time.Time `db:"last_checked" json:"last_checked"`
}

// Metric is one raw+normalized observation. Immutable once written;
// re-scoring appends new rows.
type Metric struct {
	ID              int64     `db:"id" json:"id"`
	NicheID         string    `db:"niche_id" json:"niche_id"`
	SourceID        string    `db:"source_id" json:"source_id"`
	MetricType      string    `db:"metric_type" json:"metric_type"`
	RawValue        float64   `db:"raw_value" json:"raw_value"`
	NormalizedValue float64   `db:"normalized_value" json:"normalized_value"`
	Confidence      float64   `db:"confidence" json:"confidence"`
	CollectedAt     time.Time `db:"collected_at" json:"collected_at"`
	Period          string    `db:"period" json:"period"`
}

// TrendPoint is one append-only time-series point per niche per
// scoring pass, ordered by recorded_at.
type TrendPoint struct {
	ID         int64     `db:"id" json:"id"`
	NicheID    string    `db:"niche_id" json:"niche_id"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
	PeriodType string    `db:"period_type" json:"period_type"`
	Overall    float64   `db:"overall_score" json:"overall_score"`
	Delta      float64   `db:"score_delta" json:"score_delta"`
	Momentum   float64   `db:"momentum" json:"momentum"`
	Volatility float64   `db:"volatility" json:"volatility"`
	Confidence float64   `db:"confidence" json:"confidence"`
}

// ErrNotFound is returned for lookups of unknown records.
var ErrNotFound = errors.New("store: not found")

// NicheListOpts controls niche listing.
type NicheListOpts struct {
	MinScore   float64
	ActiveOnly bool
	Limit      int
}

// Store is the persistence interface.
type Store interface {
	UpsertNiche(ctx context.Context, n *Niche) error
	GetNiche(ctx context.Context, id string) (*Niche, error)
	GetNicheByAlias(ctx context.Context, alias string) (*Niche, error)
	ListNiches(ctx context.Context, opts NicheListOpts) ([]Niche, error)
	RecordNicheFailure(ctx context.Context, id string) (int, error)
	DeactivateNiche(ctx context.Context, id string) error

	UpsertSource(ctx context.Context, s *Source) error
	GetSource(ctx context.Context, id string) (*Source, error)

	AddMetric(ctx context.Context, m *Metric) error
	ListMetrics(ctx context.Context, nicheID string, limit int) ([]Metric, error)

	AppendTrendPoint(ctx context.Context, p *TrendPoint) error
	GetTrendPoints(ctx context.Context, nicheID string, limit int) ([]TrendPoint, error)
	CountTrendPoints(ctx context.Context, nicheID string) (int, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertNiche(ctx context.Context, n *Niche) error {
	keywordsJSON, _ := json.Marshal(n.Keywords)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO niches (id, name, keywords, alias, category, trend_score, competition_score,
			monetization_score, audience_score, content_score, overall_score,
			discovered_at, last_updated, is_active, is_validated, fetch_failure_streak)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			keywords = excluded.keywords,
			alias = CASE WHEN excluded.alias = '' THEN niches.alias ELSE excluded.alias END,
			category = excluded.category,
			trend_score = excluded.trend_score,
			competition_score = excluded.competition_score,
			monetization_score = excluded.monetization_score,
			audience_score = excluded.audience_score,
			content_score = excluded.content_score,
			overall_score = excluded.overall_score,
			last_updated = excluded.last_updated,
			is_active = excluded.is_active,
			is_validated = excluded.is_validated,
			fetch_failure_streak = 0
	`, n.ID, n.Name, string(keywordsJSON), n.Alias, n.Category,
		n.TrendScore, n.CompetitionScore, n.MonetizationScore, n.AudienceScore,
		n.ContentScore, n.OverallScore, n.DiscoveredAt, n.LastUpdated,
		n.IsActive, n.IsValidated)
	if err != nil {
		return fmt.Errorf("upsert niche %s: %w", n.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetNiche(ctx context.Context, id string) (*Niche, error) {
	var n Niche
	err := s.db.GetContext(ctx, &n, "SELECT * FROM niches WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get niche %s: %w", id, err)
	}
	json.Unmarshal([]byte(n.KeywordsJSON), &n.Keywords)
	return &n, nil
}

// GetNicheByAlias resolves a niche by the seed alias (canonical handle
// or name key) it was discovered under.
func (s *SQLiteStore) GetNicheByAlias(ctx context.Context, alias string) (*Niche, error) {
	if alias == "" {
		return nil, ErrNotFound
	}
	var n Niche
	err := s.db.GetContext(ctx, &n, "SELECT * FROM niches WHERE alias = ?", alias)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get niche by alias %s: %w", alias, err)
	}
	json.Unmarshal([]byte(n.KeywordsJSON), &n.Keywords)
	return &n, nil
}

func (s *SQLiteStore) ListNiches(ctx context.Context, opts NicheListOpts) ([]Niche, error) {
	query := "SELECT * FROM niches WHERE 1=1"
	var args []any

	if opts.MinScore > 0 {
		query += " AND overall_score >= ?"
		args = append(args, opts.MinScore)
	}
	if opts.ActiveOnly {
		query += " AND is_active = 1"
	}

	query += " ORDER BY overall_score DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var niches []Niche
	if err := s.db.SelectContext(ctx, &niches, query, args...); err != nil {
		return nil, fmt.Errorf("list niches: %w", err)
	}

	for i := range niches {
		json.Unmarshal([]byte(niches[i].KeywordsJSON), &niches[i].Keywords)
	}
	return niches, nil
}

// RecordNicheFailure bumps the validation failure streak and returns
// the new streak value.
func (s *SQLiteStore) RecordNicheFailure(ctx context.Context, id string) (int, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE niches SET fetch_failure_streak = fetch_failure_streak + 1 WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("record niche failure %s: %w", id, err)
	}

	var streak int
	err = s.db.GetContext(ctx, &streak,
		"SELECT fetch_failure_streak FROM niches WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read niche failure streak %s: %w", id, err)
	}
	return streak, nil
}

// DeactivateNiche soft-deletes a niche, preserving its trend history.
func (s *SQLiteStore) DeactivateNiche(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE niches SET is_active = 0, last_updated = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate niche %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertSource(ctx context.Context, src *Source) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, rate_limit_per_min, total_requests,
			success_count, failure_count, avg_latency_ms, last_checked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			rate_limit_per_min = excluded.rate_limit_per_min,
			total_requests = excluded.total_requests,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			avg_latency_ms = excluded.avg_latency_ms,
			last_checked = excluded.last_checked
	`, src.ID, src.Name, src.RateLimitPerMin, src.TotalRequests,
		src.SuccessCount, src.FailureCount, src.AvgLatencyMS, src.LastChecked)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", src.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetSource(ctx context.Context, id string) (*Source, error) {
	var src Source
	err := s.db.GetContext(ctx, &src, "SELECT * FROM sources WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", id, err)
	}
	return &src, nil
}

func (s *SQLiteStore) AddMetric(ctx context.Context, m *Metric) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics (niche_id, source_id, metric_type, raw_value,
			normalized_value, confidence, collected_at, period)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.NicheID, m.SourceID, m.MetricType, m.RawValue,
		m.NormalizedValue, m.Confidence, m.CollectedAt, m.Period)
	if err != nil {
		return fmt.Errorf("add metric %s/%s: %w", m.NicheID, m.MetricType, err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListMetrics(ctx context.Context, nicheID string, limit int) ([]Metric, error) {
	if limit <= 0 {
		limit = 100
	}
	var metrics []Metric
	err := s.db.SelectContext(ctx, &metrics,
		"SELECT * FROM metrics WHERE niche_id = ? ORDER BY collected_at DESC, id DESC LIMIT ?",
		nicheID, limit)
	if err != nil {
		return nil, fmt.Errorf("list metrics %s: %w", nicheID, err)
	}
	return metrics, nil
}

func (s *SQLiteStore) AppendTrendPoint(ctx context.Context, p *TrendPoint) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trend_points (niche_id, recorded_at, period_type, overall_score,
			score_delta, momentum, volatility, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.NicheID, p.RecordedAt, p.PeriodType, p.Overall,
		p.Delta, p.Momentum, p.Volatility, p.Confidence)
	if err != nil {
		return fmt.Errorf("append trend point %s: %w", p.NicheID, err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// GetTrendPoints returns up to limit most recent points for a niche,
// in ascending time order.
func (s *SQLiteStore) GetTrendPoints(ctx context.Context, nicheID string, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = 100
	}
	var points []TrendPoint
	err := s.db.SelectContext(ctx, &points, `
		SELECT * FROM (
			SELECT * FROM trend_points WHERE niche_id = ?
			ORDER BY recorded_at DESC, id DESC LIMIT ?
		) ORDER BY recorded_at ASC, id ASC
	`, nicheID, limit)
	if err != nil {
		return nil, fmt.Errorf("get trend points %s: %w", nicheID, err)
	}
	return points, nil
}

func (s *SQLiteStore) CountTrendPoints(ctx context.Context, nicheID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM trend_points WHERE niche_id = ?", nicheID)
	if err != nil {
		return 0, fmt.Errorf("count trend points %s: %w", nicheID, err)
	}
	return count, nil
}
