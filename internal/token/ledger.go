package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is an in-memory fungible token: balances, allowances, and a total
// supply kept in sync by mint/transfer. All amounts are in the token's
// native precision (10^decimals per whole unit).
//
// Every balance or allowance write is journaled, and Snapshot returns a
// journal cursor that RevertToSnapshot unwinds to. The journal is what lets
// the auction engine treat "pay out, run callback, collect payment" as one
// atomic action.
type Ledger struct {
	addr     common.Address
	symbol   string
	decimals uint8

	mu          sync.Mutex
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	totalSupply *big.Int
	journal     []journalEntry
}

type entryKind int

const (
	entryBalance entryKind = iota
	entryAllowance
	entrySupply
)

// journalEntry records the previous value of one mutated cell.
type journalEntry struct {
	kind           entryKind
	account, other common.Address // other = spender for allowance entries
	prev           *big.Int
}

// NewLedger creates a token ledger. The address is the token's identity in
// the engine's registry and slots.
func NewLedger(addr common.Address, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		addr:        addr,
		symbol:      symbol,
		decimals:    decimals,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		totalSupply: new(big.Int),
	}
}

// Address returns the token's identifying address.
func (l *Ledger) Address() common.Address { return l.addr }

// Symbol returns the token's display symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the token's native decimal count.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// BalanceOf returns a copy of the account's balance.
func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(account))
}

// TotalSupply returns a copy of the minted supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalSupply)
}

// Mint credits amount to the account and grows total supply. Used to seed
// simulation and test balances; there is no burn.
func (l *Ledger) Mint(to common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setBalance(to, new(big.Int).Add(l.balance(to), amount))
	l.journal = append(l.journal, journalEntry{kind: entrySupply, prev: new(big.Int).Set(l.totalSupply)})
	l.totalSupply = new(big.Int).Add(l.totalSupply, amount)
}

// Transfer moves amount from one balance to another. Fails without side
// effects if from's balance is insufficient.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves amount from owner to the destination, spending the
// allowance owner granted to spender. Both the allowance and the balance
// must cover the amount.
func (l *Ledger) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowance(owner, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s spender %s has %s, needs %s",
			ErrInsufficientAllowance, l.symbol, spender.Hex(), allowed, amount)
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	l.setAllowance(owner, spender, new(big.Int).Sub(allowed, amount))
	return nil
}

// Approve sets the allowance owner grants to spender.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAllowance(owner, spender, new(big.Int).Set(amount))
}

// Allowance returns a copy of the allowance owner granted to spender.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowance(owner, spender))
}

// Snapshot returns a cursor into the change journal. A later
// RevertToSnapshot with the same cursor undoes every write made since.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.journal)
}

// RevertToSnapshot unwinds the journal back to the given cursor, restoring
// balances, allowances, and supply to their values at Snapshot time.
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id > len(l.journal) {
		return
	}
	for i := len(l.journal) - 1; i >= id; i-- {
		e := l.journal[i]
		switch e.kind {
		case entryBalance:
			l.balances[e.account] = e.prev
		case entryAllowance:
			l.allowanceMap(e.account)[e.other] = e.prev
		case entrySupply:
			l.totalSupply = e.prev
		}
	}
	l.journal = l.journal[:id]
}

// move transfers between balances. Caller holds the mutex.
func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%s: negative transfer amount %s", l.symbol, amount)
	}
	bal := l.balance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s account %s has %s, needs %s",
			ErrInsufficientBalance, l.symbol, from.Hex(), bal, amount)
	}
	l.setBalance(from, new(big.Int).Sub(bal, amount))
	l.setBalance(to, new(big.Int).Add(l.balance(to), amount))
	return nil
}

func (l *Ledger) balance(account common.Address) *big.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) setBalance(account common.Address, v *big.Int) {
	prev := new(big.Int).Set(l.balance(account))
	l.journal = append(l.journal, journalEntry{kind: entryBalance, account: account, prev: prev})
	l.balances[account] = v
}

func (l *Ledger) allowanceMap(owner common.Address) map[common.Address]*big.Int {
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]*big.Int)
		l.allowances[owner] = m
	}
	return m
}

func (l *Ledger) allowance(owner, spender common.Address) *big.Int {
	if a, ok := l.allowanceMap(owner)[spender]; ok {
		return a
	}
	return new(big.Int)
}

func (l *Ledger) setAllowance(owner, spender common.Address, v *big.Int) {
	prev := new(big.Int).Set(l.allowance(owner, spender))
	l.journal = append(l.journal, journalEntry{kind: entryAllowance, account: owner, other: spender, prev: prev})
	l.allowanceMap(owner)[spender] = v
}
