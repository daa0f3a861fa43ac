package auction

import (
	"math/big"
	"testing"

	"dutch-auctioneer/pkg/types"
)

func TestMulDivRounding(t *testing.T) {
	t.Parallel()

	x, y, d := big.NewInt(10), big.NewInt(3), big.NewInt(4)
	if got := mulDiv(x, y, d, roundDown); got.Int64() != 7 {
		t.Errorf("mulDiv down = %s, want 7", got)
	}
	if got := mulDiv(x, y, d, roundUp); got.Int64() != 8 {
		t.Errorf("mulDiv up = %s, want 8", got)
	}
	// Exact division must not be bumped by the up mode.
	if got := mulDiv(big.NewInt(6), big.NewInt(2), big.NewInt(4), roundUp); got.Int64() != 3 {
		t.Errorf("mulDiv up exact = %s, want 3", got)
	}
}

func TestDecayWadIdentity(t *testing.T) {
	t.Parallel()

	if got := decayWad(500, 0); got.Cmp(types.Wad()) != 0 {
		t.Errorf("zero steps = %s, want 1e18", got)
	}
	if got := decayWad(0, 1000); got.Cmp(types.Wad()) != 0 {
		t.Errorf("zero rate = %s, want 1e18", got)
	}
}

func TestDecayWadSingleStep(t *testing.T) {
	t.Parallel()

	// 500 bps per step leaves 95% of the price after one step.
	want, _ := new(big.Int).SetString("950000000000000000", 10)
	if got := decayWad(500, 1); got.Cmp(want) != 0 {
		t.Errorf("decayWad(500, 1) = %s, want %s", got, want)
	}
}

func TestDecayWadTenSteps(t *testing.T) {
	t.Parallel()

	// floor(0.95^10 * 1e18); every intermediate square is exact in wad
	// space so the only truncation is the final multiply.
	want, _ := new(big.Int).SetString("598736939238378906", 10)
	if got := decayWad(500, 10); got.Cmp(want) != 0 {
		t.Errorf("decayWad(500, 10) = %s, want %s", got, want)
	}
}

func TestDecayWadMonotonic(t *testing.T) {
	t.Parallel()

	prev := decayWad(500, 0)
	for steps := uint64(1); steps <= 64; steps++ {
		cur := decayWad(500, steps)
		if cur.Cmp(prev) >= 0 {
			t.Fatalf("decay not strictly decreasing at step %d: %s >= %s", steps, cur, prev)
		}
		prev = cur
	}
}

func TestDecayWadRunsToZero(t *testing.T) {
	t.Parallel()

	// 0.95^5000 is far below 1e-18, so the fixed-point value must be
	// exactly zero, and so must every later step.
	if got := decayWad(500, 5000); got.Sign() != 0 {
		t.Errorf("decayWad(500, 5000) = %s, want 0", got)
	}
	if got := decayWad(500, 1<<40); got.Sign() != 0 {
		t.Errorf("decayWad(500, 2^40) = %s, want 0", got)
	}
}

func TestDecayWadSteepRate(t *testing.T) {
	t.Parallel()

	// 9999 bps leaves one part in ten thousand per step.
	want, _ := new(big.Int).SetString("100000000000000", 10)
	if got := decayWad(9999, 1); got.Cmp(want) != 0 {
		t.Errorf("decayWad(9999, 1) = %s, want %s", got, want)
	}
	// (1e-4)^4 = 1e-16 still registers in wad space; one more step drops
	// below 1e-18 and truncates to zero.
	if got := decayWad(9999, 4); got.Int64() != 100 {
		t.Errorf("decayWad(9999, 4) = %s, want 100", got)
	}
	if got := decayWad(9999, 5); got.Sign() != 0 {
		t.Errorf("decayWad(9999, 5) = %s, want 0", got)
	}
}
