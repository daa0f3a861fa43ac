// Package token models the ERC20-style tokens the auction engine trades.
//
// The engine only needs standard balance movement: balance query, transfer,
// and an allowance-gated pull (transferFrom). On top of that it requires
// snapshot/revert so a multi-step settlement can be unwound as one atomic
// unit when a later step fails — the in-memory Ledger implements this with a
// change journal. Registry maps token addresses to ledgers for service
// wiring.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the
	// sender's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance is returned when a pull exceeds the
	// spender's approved allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrUnknownToken is returned by Registry lookups for addresses with no
	// registered ledger.
	ErrUnknownToken = errors.New("unknown token")
)

// Token is the collaborator interface the auction engine depends on.
// Transfer moves tokens out of from's balance; TransferFrom additionally
// spends spender's allowance granted by owner. Snapshot/RevertToSnapshot
// bracket a group of movements so they can be undone together.
type Token interface {
	Address() common.Address
	Decimals() uint8
	BalanceOf(account common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, owner, to common.Address, amount *big.Int) error
	Approve(owner, spender common.Address, amount *big.Int)
	Allowance(owner, spender common.Address) *big.Int
	Snapshot() int
	RevertToSnapshot(id int)
}

// Registry maps token addresses to their ledgers. The service layer
// registers every configured token at startup; the engine resolves the
// "from" and "want" sides of a trade through it.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]Token
}

// NewRegistry creates an empty token registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]Token)}
}

// Register adds a token. Re-registering an address replaces the previous
// entry.
func (r *Registry) Register(t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Address()] = t
}

// Get resolves a token by address.
func (r *Registry) Get(addr common.Address) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return t, nil
}

// Addresses returns all registered token addresses.
func (r *Registry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.tokens))
	for addr := range r.tokens {
		out = append(out, addr)
	}
	return out
}
