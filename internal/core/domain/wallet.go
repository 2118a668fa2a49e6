package domain

import (
	"time"
)

// AgeUnknown marks a wallet whose age has not been computed yet.
const AgeUnknown = -1

// Wallet represents a tracked wallet address and its mutable tracking state.
type Wallet struct {
	ID            uint64     `json:"id"              db:"id"`
	Address       string     `json:"address"         db:"address"`
	Chain         Chain      `json:"chain"           db:"chain"`
	Label         string     `json:"label"           db:"label"`
	Tags          []string   `json:"tags"            db:"-"`
	CreatedAt     time.Time  `json:"created_at"      db:"created_at"`
	FirstSeen     *time.Time `json:"first_seen"      db:"first_seen"`
	AgeDays       int        `json:"age_days"        db:"age_days"`
	AgeComputedAt *time.Time `json:"age_computed_at" db:"age_computed_at"`
	Active        bool       `json:"active"          db:"active"`
}

// Key identifies a wallet across chains.
type WalletKey struct {
	Chain   Chain
	Address string
}

func (w *Wallet) Key() WalletKey {
	return WalletKey{Chain: w.Chain, Address: w.Address}
}

// DisplayName returns the label if set, otherwise a shortened address.
func (w *Wallet) DisplayName() string {
	if w.Label != "" {
		return w.Label
	}
	if len(w.Address) > 12 {
		return w.Address[:6] + "..." + w.Address[len(w.Address)-4:]
	}
	return w.Address
}

// NeedsAgeRefresh reports whether the age should be recomputed for a scan that
// started at scanStart. Age is recomputed at most once per scan.
func (w *Wallet) NeedsAgeRefresh(scanStart time.Time) bool {
	return w.AgeComputedAt == nil || w.AgeComputedAt.Before(scanStart)
}
