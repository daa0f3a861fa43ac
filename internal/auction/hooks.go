package auction

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"dutch-auctioneer/internal/token"
	"dutch-auctioneer/pkg/types"
)

// KickSource reports how much of a token a kick could sell right now.
// Kickable is a read-only estimate; Release is invoked inside Kick and may
// synchronously free funds from elsewhere (e.g. redeem a wrapped position)
// before returning the sellable amount. A Release failure aborts the whole
// kick.
type KickSource interface {
	Kickable(ctx context.Context, tok common.Address) (*big.Int, error)
	Release(ctx context.Context, tok common.Address) (*big.Int, error)
}

// BalanceSource is the default KickSource: the engine sells whatever its
// account currently holds. Release has nothing to free and mirrors Kickable.
type BalanceSource struct {
	Account common.Address
	Tokens  *token.Registry
}

// Kickable returns the account's current balance of the token.
func (s *BalanceSource) Kickable(_ context.Context, tok common.Address) (*big.Int, error) {
	t, err := s.Tokens.Get(tok)
	if err != nil {
		return nil, err
	}
	return t.BalanceOf(s.Account), nil
}

// Release returns the account's current balance of the token.
func (s *BalanceSource) Release(ctx context.Context, tok common.Address) (*big.Int, error) {
	return s.Kickable(ctx, tok)
}

// TakerCallback is invoked during a take when the taker supplied auxiliary
// data. The taker already holds amountTaken of the auctioned token and must
// arrange for amountNeeded of want to be pullable (via allowance) from its
// account by the time the callback returns. The callback is untrusted: a
// reentrant mutating engine call from inside it fails with ErrReentrantCall.
type TakerCallback func(ctx context.Context, fromToken, taker common.Address, amountTaken, amountNeeded *big.Int, data []byte) error

// SlotStore persists auction slot state across restarts. The engine saves a
// snapshot on every state transition and restores all slots at construction.
type SlotStore interface {
	SaveSlot(snap types.SlotSnapshot) error
	DeleteSlot(tok common.Address) error
	LoadSlots() ([]types.SlotSnapshot, error)
}
