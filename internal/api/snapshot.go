package api

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dutch-auctioneer/internal/token"
	"dutch-auctioneer/pkg/types"
)

// EngineProvider is the read-only slice of the auction engine the API serves.
type EngineProvider interface {
	Account() common.Address
	Want() common.Address
	Receiver() common.Address
	Governance() common.Address
	StartingPrice() *big.Int
	StepDuration() time.Duration
	StepDecayRate() uint64
	Slots() []types.SlotSnapshot
	Available(fromToken common.Address) *big.Int
	Price(fromToken common.Address) (*big.Int, error)
}

// symboler is satisfied by ledgers that carry a human-readable symbol.
type symboler interface {
	Symbol() string
}

// BuildSnapshot aggregates engine state into an API snapshot.
func BuildSnapshot(provider EngineProvider, tokens *token.Registry) StateSnapshot {
	wantDecimals := uint8(18)
	if w, err := tokens.Get(provider.Want()); err == nil {
		wantDecimals = w.Decimals()
	}

	slots := provider.Slots()
	auctions := make([]AuctionStatus, 0, len(slots))
	for _, snap := range slots {
		auctions = append(auctions, buildAuctionStatus(provider, tokens, snap, wantDecimals))
	}

	return StateSnapshot{
		Timestamp:        time.Now(),
		Account:          provider.Account().Hex(),
		Want:             provider.Want().Hex(),
		Receiver:         provider.Receiver().Hex(),
		Governance:       provider.Governance().Hex(),
		StartingPrice:    formatUnits(provider.StartingPrice(), 18),
		StepDuration:     provider.StepDuration().String(),
		StepDecayRateBps: provider.StepDecayRate(),
		Auctions:         auctions,
	}
}

func buildAuctionStatus(provider EngineProvider, tokens *token.Registry, snap types.SlotSnapshot, wantDecimals uint8) AuctionStatus {
	status := AuctionStatus{
		Token:            snap.Token.Hex(),
		Decimals:         snap.Decimals,
		InitialAvailable: formatUnits(snap.InitialAvailable, snap.Decimals),
		CurrentAvailable: formatUnits(snap.CurrentAvailable, snap.Decimals),
	}
	if t, err := tokens.Get(snap.Token); err == nil {
		if s, ok := t.(symboler); ok {
			status.Symbol = s.Symbol()
		}
	}

	if snap.Dormant() {
		status.Status = StatusDormant
		return status
	}
	status.KickedAt = time.Unix(snap.KickedAt, 0).UTC()

	// A kicked slot with no takeable amount has either decayed to zero or
	// been priced out; either way nothing can be bought until it is settled
	// and re-kicked.
	if provider.Available(snap.Token).Sign() == 0 {
		status.Status = StatusExpired
		return status
	}
	status.Status = StatusLive
	if price, err := provider.Price(snap.Token); err == nil {
		status.Price = formatUnits(price, wantDecimals)
	}
	return status
}
