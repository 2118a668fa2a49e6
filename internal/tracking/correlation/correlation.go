// Package correlation builds the batch-wide direction context that the
// correlation sub-score needs. It runs after every wallet in a batch has its
// local scores and before any composite score is finalised.
package correlation

import (
	"math"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

// Signal is the phase-one output of one wallet that correlation cares about.
type Signal struct {
	Key        domain.WalletKey
	Direction  domain.Direction
	NetFlowUSD float64
}

// Peer is a wallet's entry in the direction map.
type Peer struct {
	Direction domain.Direction
	Active    bool
}

// DirectionMap holds the direction of every wallet in one scan batch.
type DirectionMap map[domain.WalletKey]Peer

// Build extracts each wallet's direction and active flag. A wallet is active
// when its net-flow magnitude is strictly above noiseFloorUSD.
func Build(signals []Signal, noiseFloorUSD float64) DirectionMap {
	m := make(DirectionMap, len(signals))
	for _, s := range signals {
		active := math.Abs(s.NetFlowUSD) > noiseFloorUSD && s.Direction != domain.DirectionNeutral
		m[s.Key] = Peer{Direction: s.Direction, Active: active}
	}
	return m
}

// Agreement counts the active peers of self (self excluded) and how many of
// them move in direction dir.
func (m DirectionMap) Agreement(self domain.WalletKey, dir domain.Direction) (same, active int) {
	for key, p := range m {
		if key == self || !p.Active {
			continue
		}
		active++
		if p.Direction == dir {
			same++
		}
	}
	return same, active
}

// ActiveCount returns the number of active wallets in the batch.
func (m DirectionMap) ActiveCount() int {
	n := 0
	for _, p := range m {
		if p.Active {
			n++
		}
	}
	return n
}
