package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

// ScoreRepo implements storage.ScoreRepository using PostgreSQL.
type ScoreRepo struct {
	db *DB
}

// NewScoreRepo creates a new PostgreSQL score repository.
func NewScoreRepo(db *DB) *ScoreRepo {
	return &ScoreRepo{db: db}
}

// Save appends a score history row.
func (r *ScoreRepo) Save(ctx context.Context, s *domain.ScoreSnapshot) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO scores (
			address, chain, computed_at, window_seconds, total_score,
			net_flow, velocity, correlation, exchange_flow,
			net_flow_usd, direction, alert_triggered
		) VALUES (
			:address, :chain, :computed_at, :window_seconds, :total_score,
			:net_flow, :velocity, :correlation, :exchange_flow,
			:net_flow_usd, :direction, :alert_triggered
		)`, s)
	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}
	return nil
}

// History returns snapshots matching the filter, newest first.
func (r *ScoreRepo) History(ctx context.Context, filter storage.ScoreFilter) ([]*domain.ScoreSnapshot, error) {
	var where []string
	var args []any
	if filter.Chain != "" {
		args = append(args, filter.Chain)
		where = append(where, fmt.Sprintf("chain = $%d", len(args)))
	}
	if filter.Address != "" {
		args = append(args, filter.Address)
		where = append(where, fmt.Sprintf("address = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("computed_at >= $%d", len(args)))
	}

	q := `SELECT address, chain, computed_at, window_seconds, total_score,
		net_flow, velocity, correlation, exchange_flow,
		net_flow_usd, direction, alert_triggered
		FROM scores`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY computed_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var out []*domain.ScoreSnapshot
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}
	return out, nil
}
