// Package keeper runs the maintenance loop around the auction engine.
//
// The engine itself is passive: prices decay as a function of wall-clock
// time, and every transition happens inside a caller's invocation. The
// keeper is that caller for the unattended cases. On each poll it walks the
// enabled tokens and
//
//   - settles auctions whose decay has run to zero, freeing the slot so the
//     leftovers can be re-kicked at a fresh starting price, and
//   - asks the trigger whether each dormant slot should be kicked, and kicks
//     the approved ones.
//
// Takes are never the keeper's job. Buying is for external takers.
package keeper

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dutch-auctioneer/internal/auction"
	"dutch-auctioneer/internal/trigger"
	"dutch-auctioneer/pkg/types"
)

// Engine is the slice of the auction engine the keeper drives.
type Engine interface {
	EnabledTokens() []common.Address
	Slot(fromToken common.Address) (types.SlotSnapshot, error)
	Available(fromToken common.Address) *big.Int
	Kick(ctx context.Context, fromToken common.Address) (*big.Int, error)
	Settle(fromToken common.Address) error
}

// Keeper polls the engine and fires kicks and settles.
type Keeper struct {
	engine   Engine
	trigger  trigger.Trigger
	interval time.Duration
	logger   *slog.Logger
}

// New creates a keeper polling at the given interval.
func New(engine Engine, trig trigger.Trigger, interval time.Duration, logger *slog.Logger) *Keeper {
	return &Keeper{
		engine:   engine,
		trigger:  trig,
		interval: interval,
		logger:   logger.With("component", "keeper"),
	}
}

// Run starts the polling loop. Blocks until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) {
	// Do an immediate pass on startup
	k.Poll(ctx)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Poll(ctx)
		}
	}
}

// Poll walks every enabled token once. Exported so tests and operators can
// drive a single pass without the ticker.
func (k *Keeper) Poll(ctx context.Context) {
	for _, tok := range k.engine.EnabledTokens() {
		k.maintain(ctx, tok)
	}
}

func (k *Keeper) maintain(ctx context.Context, tok common.Address) {
	snap, err := k.engine.Slot(tok)
	if err != nil {
		// Disabled between enumeration and lookup.
		return
	}

	// A kicked slot whose availability no longer shows up is expired (or
	// fully taken with the settle event racing us). Settle it so the next
	// trigger approval can re-kick.
	if !snap.Dormant() && snap.CurrentAvailable.Sign() > 0 && k.engine.Available(tok).Sign() == 0 {
		if err := k.engine.Settle(tok); err != nil {
			if !errors.Is(err, auction.ErrAuctionActive) && !errors.Is(err, auction.ErrNotKicked) {
				k.logger.Error("settle failed", "token", tok.Hex(), "error", err)
			}
			return
		}
		k.logger.Info("expired auction settled", "token", tok.Hex())
		snap.KickedAt = 0
	}

	if !snap.Dormant() {
		return
	}

	kick, err := k.trigger.ShouldKick(ctx, tok, snap)
	if err != nil {
		k.logger.Error("trigger failed", "token", tok.Hex(), "error", err)
		return
	}
	if !kick {
		return
	}

	amount, err := k.engine.Kick(ctx, tok)
	if err != nil {
		// Nothing to sell is the common idle case, not a fault.
		if errors.Is(err, auction.ErrNothingToKick) {
			k.logger.Debug("nothing to kick", "token", tok.Hex())
			return
		}
		k.logger.Error("kick failed", "token", tok.Hex(), "error", err)
		return
	}
	k.logger.Info("auction kicked", "token", tok.Hex(), "available", amount.String())
}
