package api

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// StateSnapshot represents the complete observable engine state
type StateSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// Engine identity
	Account    string `json:"account"`
	Want       string `json:"want"`
	Receiver   string `json:"receiver"`
	Governance string `json:"governance"`

	// Pricing parameters
	StartingPrice    string `json:"starting_price"` // want per whole unit, decimal
	StepDuration     string `json:"step_duration"`
	StepDecayRateBps uint64 `json:"step_decay_rate_bps"`

	// Per-token auction state
	Auctions []AuctionStatus `json:"auctions"`
}

// AuctionStatus represents one enabled token's auction state. Amounts are
// formatted in whole units; Price is want per whole unit at snapshot time
// and empty while the slot is dormant.
type AuctionStatus struct {
	Token    string `json:"token"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals"`

	Status   string    `json:"status"` // "dormant", "live", "expired"
	KickedAt time.Time `json:"kicked_at,omitempty"`

	InitialAvailable string `json:"initial_available"`
	CurrentAvailable string `json:"current_available"`
	Price            string `json:"price,omitempty"`
}

const (
	StatusDormant = "dormant"
	StatusLive    = "live"
	StatusExpired = "expired"
)

// formatUnits renders a native-precision amount in whole units, e.g.
// 1500000 at 6 decimals becomes "1.5".
func formatUnits(x *big.Int, decimals uint8) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -int32(decimals)).String()
}
