package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

// AlertRepo implements storage.AlertRepository using PostgreSQL.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates a new PostgreSQL alert repository.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

type alertRow struct {
	domain.Alert
	NetFlowScore      int `db:"net_flow_score"`
	VelocityScore     int `db:"velocity_score"`
	CorrelationScore  int `db:"correlation_score"`
	ExchangeFlowScore int `db:"exchange_flow_score"`
}

func (r alertRow) toDomain() *domain.Alert {
	a := r.Alert
	a.SubScores = domain.SubScores{
		NetFlow:      r.NetFlowScore,
		Velocity:     r.VelocityScore,
		Correlation:  r.CorrelationScore,
		ExchangeFlow: r.ExchangeFlowScore,
	}
	return &a
}

// InsertIfAbsent relies on the (address, chain, bucket) unique constraint so
// concurrent scans cannot both insert.
func (r *AlertRepo) InsertIfAbsent(ctx context.Context, a *domain.Alert) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (
			id, address, chain, label, triggered_at, score, severity, direction,
			window_seconds, bucket, net_flow_usd,
			net_flow_score, velocity_score, correlation_score, exchange_flow_score,
			webhook_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (address, chain, bucket) DO NOTHING`,
		a.ID, a.Address, a.Chain, a.Label, a.TriggeredAt, a.Score, a.Severity, a.Direction,
		a.WindowSeconds, a.Bucket, a.NetFlowUSD,
		a.SubScores.NetFlow, a.SubScores.Velocity, a.SubScores.Correlation, a.SubScores.ExchangeFlow,
		a.WebhookSent,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n == 1, nil
}

// MarkNotified records the notification outcome.
func (r *AlertRepo) MarkNotified(ctx context.Context, id string, sent bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE alerts SET webhook_sent = $2 WHERE id = $1`, id, sent); err != nil {
		return fmt.Errorf("failed to mark alert notified: %w", err)
	}
	return nil
}

// List retrieves alerts, newest first.
func (r *AlertRepo) List(ctx context.Context, filter storage.AlertFilter) ([]*domain.Alert, error) {
	var where []string
	var args []any
	if filter.Chain != "" {
		args = append(args, filter.Chain)
		where = append(where, fmt.Sprintf("chain = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("triggered_at >= $%d", len(args)))
	}

	q := `SELECT id, address, chain, label, triggered_at, score, severity, direction,
		window_seconds, bucket, net_flow_usd, net_flow_score, velocity_score,
		correlation_score, exchange_flow_score, webhook_sent
		FROM alerts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY triggered_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	out := make([]*domain.Alert, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
