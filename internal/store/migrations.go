package store

const schema = `
CREATE TABLE IF NOT EXISTS niches (
    id                   TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    keywords             TEXT NOT NULL DEFAULT '[]',
    alias                TEXT NOT NULL DEFAULT '',
    category             TEXT NOT NULL DEFAULT '',
    trend_score          REAL NOT NULL DEFAULT 0,
    competition_score    REAL NOT NULL DEFAULT 0,
    monetization_score   REAL NOT NULL DEFAULT 0,
    audience_score       REAL NOT NULL DEFAULT 0,
    content_score        REAL NOT NULL DEFAULT 0,
    overall_score        REAL NOT NULL DEFAULT 0,
    discovered_at        DATETIME NOT NULL,
    last_updated         DATETIME NOT NULL,
    is_active            BOOLEAN NOT NULL DEFAULT 1,
    is_validated         BOOLEAN NOT NULL DEFAULT 0,
    fetch_failure_streak INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_niches_overall ON niches(overall_score);
CREATE INDEX IF NOT EXISTS idx_niches_active ON niches(is_active);
CREATE INDEX IF NOT EXISTS idx_niches_updated ON niches(last_updated);
CREATE INDEX IF NOT EXISTS idx_niches_alias ON niches(alias);

CREATE TABLE IF NOT EXISTS sources (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    rate_limit_per_min INTEGER NOT NULL DEFAULT 0,
    total_requests     INTEGER NOT NULL DEFAULT 0,
    success_count      INTEGER NOT NULL DEFAULT 0,
    failure_count      INTEGER NOT NULL DEFAULT 0,
    avg_latency_ms     REAL NOT NULL DEFAULT 0,
    last_checked       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS metrics (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    niche_id         TEXT NOT NULL REFERENCES niches(id),
    source_id        TEXT NOT NULL,
    metric_type      TEXT NOT NULL,
    raw_value        REAL NOT NULL,
    normalized_value REAL NOT NULL,
    confidence       REAL NOT NULL,
    collected_at     DATETIME NOT NULL,
    period           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_metrics_niche ON metrics(niche_id);
CREATE INDEX IF NOT EXISTS idx_metrics_collected ON metrics(collected_at);

CREATE TABLE IF NOT EXISTS trend_points (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    niche_id      TEXT NOT NULL REFERENCES niches(id),
    recorded_at   DATETIME NOT NULL,
    period_type   TEXT NOT NULL DEFAULT 'pass',
    overall_score REAL NOT NULL,
    score_delta   REAL NOT NULL DEFAULT 0,
    momentum      REAL NOT NULL DEFAULT 0,
    volatility    REAL NOT NULL DEFAULT 0,
    confidence    REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trend_points_niche ON trend_points(niche_id);
CREATE INDEX IF NOT EXISTS idx_trend_points_recorded ON trend_points(recorded_at);
`
