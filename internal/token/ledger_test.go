package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
	carol = common.HexToAddress("0xca40100000000000000000000000000000000003")
)

func newTestLedger() *Ledger {
	return NewLedger(common.HexToAddress("0x1000000000000000000000000000000000000001"), "TKN", 18)
}

func TestMintAndTransfer(t *testing.T) {
	t.Parallel()
	l := newTestLedger()

	l.Mint(alice, big.NewInt(1000))
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("balance = %s, want 1000", got)
	}
	if got := l.TotalSupply(); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("supply = %s, want 1000", got)
	}

	if err := l.Transfer(alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(600)) != 0 {
		t.Errorf("alice = %s, want 600", got)
	}
	if got := l.BalanceOf(bob); got.Cmp(big.NewInt(400)) != 0 {
		t.Errorf("bob = %s, want 400", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	t.Parallel()
	l := newTestLedger()
	l.Mint(alice, big.NewInt(10))

	err := l.Transfer(alice, bob, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	// Failed transfer must not move anything.
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("alice = %s, want 10", got)
	}
	if got := l.BalanceOf(bob); got.Sign() != 0 {
		t.Errorf("bob = %s, want 0", got)
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	t.Parallel()
	l := newTestLedger()
	l.Mint(alice, big.NewInt(1000))
	l.Approve(alice, bob, big.NewInt(300))

	if err := l.TransferFrom(bob, alice, carol, big.NewInt(200)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if got := l.BalanceOf(carol); got.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("carol = %s, want 200", got)
	}
	if got := l.Allowance(alice, bob); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("allowance = %s, want 100", got)
	}

	err := l.TransferFrom(bob, alice, carol, big.NewInt(101))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}
}

func TestSnapshotRevert(t *testing.T) {
	t.Parallel()
	l := newTestLedger()
	l.Mint(alice, big.NewInt(1000))
	l.Approve(alice, bob, big.NewInt(500))

	snap := l.Snapshot()

	if err := l.Transfer(alice, bob, big.NewInt(250)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := l.TransferFrom(bob, alice, carol, big.NewInt(100)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	l.Mint(carol, big.NewInt(7))

	l.RevertToSnapshot(snap)

	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("alice = %s, want 1000", got)
	}
	if got := l.BalanceOf(bob); got.Sign() != 0 {
		t.Errorf("bob = %s, want 0", got)
	}
	if got := l.BalanceOf(carol); got.Sign() != 0 {
		t.Errorf("carol = %s, want 0", got)
	}
	if got := l.Allowance(alice, bob); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("allowance = %s, want 500", got)
	}
	if got := l.TotalSupply(); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("supply = %s, want 1000", got)
	}
}

func TestRevertIsIdempotentOnEmptyRange(t *testing.T) {
	t.Parallel()
	l := newTestLedger()
	l.Mint(alice, big.NewInt(5))

	snap := l.Snapshot()
	l.RevertToSnapshot(snap)
	l.RevertToSnapshot(snap)

	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("alice = %s, want 5", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	l := newTestLedger()
	r.Register(l)

	got, err := r.Get(l.Address())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Address() != l.Address() {
		t.Errorf("address mismatch")
	}

	_, err = r.Get(bob)
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("err = %v, want ErrUnknownToken", err)
	}

	if n := len(r.Addresses()); n != 1 {
		t.Errorf("Addresses() len = %d, want 1", n)
	}
}
