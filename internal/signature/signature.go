// Package signature implements an ERC-1271-style validation hook so external
// settlement infrastructure can treat the auction engine as an order
// counterparty.
//
// An off-chain matching system proposes an order describing a take it would
// like to execute. The engine "signs" nothing: instead, IsValidSignature
// checks that the hash commits to the presented order bytes and that the
// described take is one the engine would accept right now, at or above the
// current auction price. This is a compatibility shim over the take
// preconditions, not part of settlement itself.
package signature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MagicValue is the ERC-1271 success selector, bytes4(keccak256(
// "isValidSignature(bytes32,bytes)")). Anything else means invalid.
var MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

var (
	ErrHashMismatch = errors.New("signature: hash does not commit to order")
	ErrMalformed    = errors.New("signature: malformed order encoding")
	ErrExpired      = errors.New("signature: order validity window has passed")
	ErrNotTakeable  = errors.New("signature: order does not match a valid take")
)

// Order describes a take the engine is asked to honor: SellAmount of
// SellToken out of the auction in exchange for at least BuyAmount of
// BuyToken, valid until ValidTo.
type Order struct {
	SellToken  common.Address `json:"sell_token"`
	BuyToken   common.Address `json:"buy_token"`
	SellAmount *big.Int       `json:"sell_amount"`
	BuyAmount  *big.Int       `json:"buy_amount"`
	ValidTo    int64          `json:"valid_to"` // unix seconds
}

// Encode serializes the order into the byte form used as the "signature".
func (o Order) Encode() ([]byte, error) {
	return json.Marshal(o)
}

// Digest returns the 32-byte hash committing to the encoded order.
func (o Order) Digest() (common.Hash, error) {
	enc, err := o.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(crypto.Keccak256(enc)), nil
}

// Engine is the slice of the auction engine the validator needs: current
// pricing and availability for a prospective take.
type Engine interface {
	Want() common.Address
	Available(fromToken common.Address) *big.Int
	AmountNeeded(fromToken common.Address, amountToTake *big.Int) (*big.Int, error)
}

// Validator checks presented orders against live auction state.
type Validator struct {
	engine Engine
	now    func() time.Time
}

// NewValidator wires a validator over an engine. now defaults to time.Now.
func NewValidator(engine Engine, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{engine: engine, now: now}
}

// IsValidSignature returns MagicValue when sig decodes to an order that hash
// commits to and that describes a take the engine would accept right now:
// the sell token is live with enough availability, the buy token is the
// engine's want, and the offered buy amount covers the current price. Any
// other outcome returns a zero selector and a reason.
func (v *Validator) IsValidSignature(hash common.Hash, sig []byte) ([4]byte, error) {
	if !bytes.Equal(hash.Bytes(), crypto.Keccak256(sig)) {
		return [4]byte{}, ErrHashMismatch
	}

	var order Order
	if err := json.Unmarshal(sig, &order); err != nil {
		return [4]byte{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if order.SellAmount == nil || order.SellAmount.Sign() <= 0 || order.BuyAmount == nil {
		return [4]byte{}, fmt.Errorf("%w: non-positive sell amount", ErrMalformed)
	}
	if v.now().Unix() > order.ValidTo {
		return [4]byte{}, ErrExpired
	}
	if order.BuyToken != v.engine.Want() {
		return [4]byte{}, fmt.Errorf("%w: buy token is not the settlement token", ErrNotTakeable)
	}
	if v.engine.Available(order.SellToken).Cmp(order.SellAmount) < 0 {
		return [4]byte{}, fmt.Errorf("%w: insufficient availability", ErrNotTakeable)
	}

	needed, err := v.engine.AmountNeeded(order.SellToken, order.SellAmount)
	if err != nil {
		return [4]byte{}, fmt.Errorf("%w: %v", ErrNotTakeable, err)
	}
	// The order must pay at least the current auction price. Overpaying is
	// the counterparty's prerogative.
	if order.BuyAmount.Cmp(needed) < 0 {
		return [4]byte{}, fmt.Errorf("%w: buy amount %s below required %s", ErrNotTakeable, order.BuyAmount, needed)
	}
	return MagicValue, nil
}
