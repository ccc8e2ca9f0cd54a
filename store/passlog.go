package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pass is one record of a translation sweep over a document: the initial
// full-document pass, a mutation-driven incremental pass, or a refresh.
type Pass struct {
	PassID    string
	StartedAt time.Time
	Duration  time.Duration
	Source    string
	Target    string
	TextNodes int
	AttrNodes int
	CacheHits int
	Failures  int
	// Trigger is "enable", "mutation" or "refresh".
	Trigger string
	// Status is "completed", "cancelled" or "failed".
	Status string
}

// LogPass records a completed pass. IDs and timestamps are filled in when
// absent. Errors are returned, not fatal; callers typically log and move on.
func (s *Store) LogPass(ctx context.Context, p *Pass) error {
	if p.PassID == "" {
		p.PassID = s.newID()
	}
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = "completed"
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO pass_log
		(pass_id, started_at, duration_ms, source, target,
		 text_nodes, attr_nodes, cache_hits, failures, cause, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.PassID, p.StartedAt.Unix(), p.Duration.Milliseconds(), p.Source, p.Target,
		p.TextNodes, p.AttrNodes, p.CacheHits, p.Failures, p.Trigger, p.Status)
	if err != nil {
		return fmt.Errorf("store: log pass: %w", err)
	}
	return nil
}

// LogPassAsync records a pass from a goroutine without blocking the caller
// on the write. Failures are logged, never propagated.
func (s *Store) LogPassAsync(p *Pass) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.LogPass(ctx, p); err != nil {
			slog.Warn("store: pass log write failed", "error", err, "target", p.Target)
		}
	}()
}

// RecentPasses returns the most recent passes, newest first.
func (s *Store) RecentPasses(ctx context.Context, limit int) ([]*Pass, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		pass_id, started_at, duration_ms, source, target,
		text_nodes, attr_nodes, cache_hits, failures, cause, status
		FROM pass_log ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent passes: %w", err)
	}
	defer rows.Close()

	var out []*Pass
	for rows.Next() {
		var p Pass
		var started, durMs int64
		if err := rows.Scan(
			&p.PassID, &started, &durMs, &p.Source, &p.Target,
			&p.TextNodes, &p.AttrNodes, &p.CacheHits, &p.Failures,
			&p.Trigger, &p.Status,
		); err != nil {
			return nil, fmt.Errorf("store: scan pass: %w", err)
		}
		p.StartedAt = time.Unix(started, 0)
		p.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, &p)
	}
	return out, rows.Err()
}
