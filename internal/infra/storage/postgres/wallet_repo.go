package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

// WalletRepo implements storage.WalletRepository using PostgreSQL.
type WalletRepo struct {
	db *DB
}

// NewWalletRepo creates a new PostgreSQL wallet repository.
func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

type walletRow struct {
	domain.Wallet
	Tags pq.StringArray `db:"tags"`
}

func (r walletRow) toDomain() *domain.Wallet {
	w := r.Wallet
	w.Tags = []string(r.Tags)
	return &w
}

// tagsParam returns a non-nil slice for a TEXT[] parameter. Rows scan tags
// through pq.StringArray since pgx returns arrays as text.
func tagsParam(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

const walletColumns = `id, address, chain, label, tags, created_at, first_seen, age_days, age_computed_at, active`

// Add inserts a wallet, or reactivates it if it was deactivated.
func (r *WalletRepo) Add(ctx context.Context, wallet *domain.Wallet) error {
	createdAt := wallet.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var row walletRow
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO wallets (address, chain, label, tags, created_at, age_days, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (chain, address) DO UPDATE
			SET active = TRUE, label = EXCLUDED.label, tags = EXCLUDED.tags
			WHERE wallets.active = FALSE
		RETURNING `+walletColumns,
		wallet.Address, wallet.Chain, wallet.Label, tagsParam(wallet.Tags), createdAt, wallet.AgeDays,
	).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrWalletExists
	}
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	*wallet = *row.toDomain()
	return nil
}

// Get retrieves an active wallet.
func (r *WalletRepo) Get(ctx context.Context, chain domain.Chain, address string) (*domain.Wallet, error) {
	var row walletRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+walletColumns+` FROM wallets WHERE chain = $1 AND address = $2 AND active`,
		chain, address,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return row.toDomain(), nil
}

// List retrieves wallets matching the filter, oldest first.
func (r *WalletRepo) List(ctx context.Context, filter storage.WalletFilter) ([]*domain.Wallet, error) {
	var where []string
	var args []any
	if !filter.IncludeInactive {
		where = append(where, "active")
	}
	if filter.Chain != "" {
		args = append(args, filter.Chain)
		where = append(where, fmt.Sprintf("chain = $%d", len(args)))
	}
	if len(filter.Tags) > 0 {
		args = append(args, tagsParam(filter.Tags))
		where = append(where, fmt.Sprintf("tags && $%d", len(args)))
	}

	q := `SELECT ` + walletColumns + ` FROM wallets`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	var rows []walletRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	out := make([]*domain.Wallet, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Deactivate soft-deletes a wallet.
func (r *WalletRepo) Deactivate(ctx context.Context, chain domain.Chain, address string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET active = FALSE WHERE chain = $1 AND address = $2 AND active`,
		chain, address,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrWalletNotFound
	}
	return nil
}

// UpdateAge stores the recomputed age. An existing first_seen is kept when
// firstSeen is nil.
func (r *WalletRepo) UpdateAge(
	ctx context.Context,
	chain domain.Chain,
	address string,
	firstSeen *time.Time,
	ageDays int,
	computedAt time.Time,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallets
		SET first_seen = COALESCE($3, first_seen), age_days = $4, age_computed_at = $5
		WHERE chain = $1 AND address = $2`,
		chain, address, firstSeen, ageDays, computedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet age: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrWalletNotFound
	}
	return nil
}
