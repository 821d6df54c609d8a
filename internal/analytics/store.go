package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Dialect selects SQL placeholder syntax.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

const snapshotSchema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	captured_at BIGINT NOT NULL,
	data        TEXT NOT NULL
)`

// Store persists Report snapshots in the catalog database so statistics
// survive restarts. captured_at holds Unix nanoseconds.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	logger  *slog.Logger
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		now:     time.Now,
		logger:  slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("creating analytics_snapshots table: %w", err)
	}
	return nil
}

// Ping is used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) placeholder(n int) string {
	if s.dialect == DialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func (s *Store) SaveSnapshot(ctx context.Context, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO analytics_snapshots (captured_at, data) VALUES (%s, %s)`,
		s.placeholder(1), s.placeholder(2))
	if _, err := s.db.ExecContext(ctx, query, s.now().UnixNano(), string(data)); err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved", "total_searches", r.TotalSearches)
	return nil
}

// LatestSnapshot returns the newest snapshot, or nil when none exist yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var r Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &r, nil
}

// ListSnapshots returns up to limit snapshots, newest first. Corrupt rows are
// skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT %s`, s.placeholder(1)),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var r Report
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunSnapshots saves agg's report every interval until ctx is cancelled,
// then saves a final one.
func (s *Store) RunSnapshots(ctx context.Context, agg *Aggregator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic analytics snapshots started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			if err := s.SaveSnapshot(ctx, agg.Report()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.SaveSnapshot(shutdownCtx, agg.Report()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
