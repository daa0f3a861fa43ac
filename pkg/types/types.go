// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the auction house — fixed-point
// constants, auction parameters, slot snapshots, and lifecycle event payloads.
// It has no dependencies on internal packages, so it can be imported by any
// layer.
package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ————————————————————————————————————————————————————————————————————————
// Fixed-point constants
// ————————————————————————————————————————————————————————————————————————

// All price math runs in a canonical 1e18 fixed-point space ("wad"),
// regardless of the native decimal counts of the two tokens involved.
const (
	WadDecimals = 18
	// BasisPointMax is the bps denominator. A step decay rate is expressed
	// as a reduction in basis points per elapsed step, in [0, 9999].
	BasisPointMax = 10_000
	// MaxTokenDecimals is the largest decimal count an auctioned token may
	// report. Tokens above this (or reporting zero) cannot be normalized
	// into wad space and are rejected at enable time.
	MaxTokenDecimals = 18
)

// Wad returns 1e18 as a fresh big.Int.
func Wad() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(WadDecimals), nil)
}

// DecimalScaler returns 10^(18-decimals), the factor that lifts an amount in
// a token's native precision into wad space.
func DecimalScaler(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(WadDecimals-decimals)), nil)
}

// Pow10 returns 10^n.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ————————————————————————————————————————————————————————————————————————
// Auction parameters
// ————————————————————————————————————————————————————————————————————————

// AuctionParams are the per-engine auction settings. Want and Receiver are
// fixed for the engine's lifetime; the pricing knobs are governance-mutable.
type AuctionParams struct {
	Want             common.Address // settlement token, fixed at construction
	Receiver         common.Address // credited with settlement proceeds
	Governance       common.Address // authorized to configure auctions
	StartingPriceWad *big.Int       // want per whole from-token unit, 1e18 fixed point
	StepDuration     time.Duration  // length of one decay step
	StepDecayRateBps uint64         // bps reduction per elapsed step, [0, 9999]
}

// ————————————————————————————————————————————————————————————————————————
// Slot snapshots
// ————————————————————————————————————————————————————————————————————————

// SlotSnapshot is a point-in-time copy of one enabled auction's state.
// Used both for persistence (store) and for the read-only API. KickedAt of
// zero means the slot is dormant: never kicked, or already settled.
type SlotSnapshot struct {
	Token            common.Address `json:"token"`
	Decimals         uint8          `json:"decimals"`
	KickedAt         int64          `json:"kicked_at"` // unix seconds, 0 = dormant
	InitialAvailable *big.Int       `json:"initial_available"`
	CurrentAvailable *big.Int       `json:"current_available"`
}

// Dormant reports whether the slot has no live or expired kick outstanding.
func (s SlotSnapshot) Dormant() bool {
	return s.KickedAt == 0
}

// ————————————————————————————————————————————————————————————————————————
// Lifecycle events
// ————————————————————————————————————————————————————————————————————————

// EventType enumerates the auction lifecycle notifications the engine emits
// for external indexers and keepers.
type EventType string

const (
	EventEnabled            EventType = "enabled"
	EventDisabled           EventType = "disabled"
	EventKicked             EventType = "kicked"
	EventTake               EventType = "take"
	EventSettled            EventType = "settled"
	EventSwept              EventType = "swept"
	EventStartingPriceSet   EventType = "starting_price_updated"
	EventStepDecayRateSet   EventType = "step_decay_rate_updated"
	EventStepDurationSet    EventType = "step_duration_updated"
	EventGovernanceProposed EventType = "governance_proposed"
	EventGovernanceXfer     EventType = "governance_transferred"
)

// AuctionEvent is a single lifecycle notification. Amount fields are set only
// where meaningful for the event type: Available on kicks, AmountTaken and
// AmountPaid on takes, AmountTaken on sweeps (the swept balance).
type AuctionEvent struct {
	Type        EventType      `json:"type"`
	Token       common.Address `json:"token"`
	Timestamp   time.Time      `json:"timestamp"`
	Available   *big.Int       `json:"available,omitempty"`
	AmountTaken *big.Int       `json:"amount_taken,omitempty"`
	AmountPaid  *big.Int       `json:"amount_paid,omitempty"`
	Taker       common.Address `json:"taker,omitempty"`
	Detail      string         `json:"detail,omitempty"`
}
