package signature

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	sellTok = common.HexToAddress("0x0000000000000000000000000000000000000101")
	wantTok = common.HexToAddress("0x0000000000000000000000000000000000000102")
)

// stubEngine serves fixed availability and a flat price of 2 want-wei per
// sell-wei so expected buy amounts are easy to read.
type stubEngine struct {
	available *big.Int
	priceErr  error
}

func (s *stubEngine) Want() common.Address { return wantTok }

func (s *stubEngine) Available(common.Address) *big.Int {
	return new(big.Int).Set(s.available)
}

func (s *stubEngine) AmountNeeded(_ common.Address, amount *big.Int) (*big.Int, error) {
	if s.priceErr != nil {
		return nil, s.priceErr
	}
	return new(big.Int).Mul(amount, big.NewInt(2)), nil
}

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0) }

func validOrder() Order {
	return Order{
		SellToken:  sellTok,
		BuyToken:   wantTok,
		SellAmount: big.NewInt(100),
		BuyAmount:  big.NewInt(200),
		ValidTo:    fixedNow().Add(time.Hour).Unix(),
	}
}

func sign(t *testing.T, o Order) (common.Hash, []byte) {
	t.Helper()
	enc, err := o.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return common.BytesToHash(crypto.Keccak256(enc)), enc
}

func TestIsValidSignatureAccepts(t *testing.T) {
	t.Parallel()
	v := NewValidator(&stubEngine{available: big.NewInt(1000)}, fixedNow)

	hash, sig := sign(t, validOrder())
	got, err := v.IsValidSignature(hash, sig)
	if err != nil {
		t.Fatalf("IsValidSignature: %v", err)
	}
	if got != MagicValue {
		t.Errorf("selector = %x, want magic value", got)
	}

	// Overpaying is fine.
	o := validOrder()
	o.BuyAmount = big.NewInt(10_000)
	hash, sig = sign(t, o)
	if got, err := v.IsValidSignature(hash, sig); err != nil || got != MagicValue {
		t.Errorf("overpaying order: selector = %x, err = %v", got, err)
	}
}

func TestIsValidSignatureHashMismatch(t *testing.T) {
	t.Parallel()
	v := NewValidator(&stubEngine{available: big.NewInt(1000)}, fixedNow)

	_, sig := sign(t, validOrder())
	if _, err := v.IsValidSignature(common.Hash{}, sig); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("err = %v, want ErrHashMismatch", err)
	}

	// A hash over different bytes than the presented order must not pass.
	other := validOrder()
	other.BuyAmount = big.NewInt(1)
	hash, _ := sign(t, other)
	if _, err := v.IsValidSignature(hash, sig); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("err = %v, want ErrHashMismatch", err)
	}
}

func TestIsValidSignatureMalformed(t *testing.T) {
	t.Parallel()
	v := NewValidator(&stubEngine{available: big.NewInt(1000)}, fixedNow)

	raw := []byte("not json")
	if _, err := v.IsValidSignature(common.BytesToHash(crypto.Keccak256(raw)), raw); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}

	o := validOrder()
	o.SellAmount = new(big.Int)
	hash, sig := sign(t, o)
	if _, err := v.IsValidSignature(hash, sig); !errors.Is(err, ErrMalformed) {
		t.Errorf("zero sell amount: err = %v, want ErrMalformed", err)
	}
}

func TestIsValidSignatureExpired(t *testing.T) {
	t.Parallel()
	v := NewValidator(&stubEngine{available: big.NewInt(1000)}, fixedNow)

	o := validOrder()
	o.ValidTo = fixedNow().Add(-time.Second).Unix()
	hash, sig := sign(t, o)
	if _, err := v.IsValidSignature(hash, sig); !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestIsValidSignatureRejectsBadTakes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		engine *stubEngine
		mutate func(*Order)
	}{
		{"wrong buy token", &stubEngine{available: big.NewInt(1000)}, func(o *Order) { o.BuyToken = sellTok }},
		{"insufficient availability", &stubEngine{available: big.NewInt(50)}, func(o *Order) {}},
		{"underpaying", &stubEngine{available: big.NewInt(1000)}, func(o *Order) { o.BuyAmount = big.NewInt(199) }},
		{"dormant auction", &stubEngine{available: big.NewInt(1000), priceErr: errors.New("not kicked")}, func(o *Order) {}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := NewValidator(tc.engine, fixedNow)
			o := validOrder()
			tc.mutate(&o)
			hash, sig := sign(t, o)
			got, err := v.IsValidSignature(hash, sig)
			if !errors.Is(err, ErrNotTakeable) {
				t.Errorf("err = %v, want ErrNotTakeable", err)
			}
			if got == MagicValue {
				t.Error("selector must not be the magic value")
			}
		})
	}
}
