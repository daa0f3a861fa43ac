package auction

import (
	"math/big"

	"dutch-auctioneer/pkg/types"
)

// rounding selects the truncation direction for mulDiv.
type rounding int

const (
	roundDown rounding = iota
	roundUp
)

// mulDiv computes x*y/denominator at full precision, rounding per the mode.
func mulDiv(x, y, denominator *big.Int, mode rounding) *big.Int {
	div, mod := new(big.Int).QuoRem(
		new(big.Int).Mul(x, y),
		denominator,
		new(big.Int),
	)
	if mode == roundUp && mod.Sign() != 0 {
		div.Add(div, big.NewInt(1))
	}
	return div
}

// decayWad returns (1 - rateBps/10000)^steps as a 1e18 fixed-point value,
// computed by binary exponentiation with wad-scaled multiplies. Integer-only,
// so the result is identical on every platform. Once the running product
// truncates to zero it stays zero — that is the designed end-of-auction
// state.
func decayWad(rateBps uint64, steps uint64) *big.Int {
	wad := types.Wad()
	if steps == 0 || rateBps == 0 {
		return wad
	}

	// base = (10000 - rateBps) * 1e18 / 10000
	base := new(big.Int).SetUint64(types.BasisPointMax - rateBps)
	base.Mul(base, wad)
	base.Div(base, big.NewInt(types.BasisPointMax))

	result := new(big.Int).Set(wad)
	for steps > 0 {
		if steps&1 == 1 {
			result = mulDiv(result, base, wad, roundDown)
			if result.Sign() == 0 {
				return result
			}
		}
		steps >>= 1
		if steps > 0 {
			base = mulDiv(base, base, wad, roundDown)
			if base.Sign() == 0 {
				// steps > 0 means at least one set bit remains, so the
				// zero base will zero the product.
				return new(big.Int)
			}
		}
	}
	return result
}
