// Package auction implements a descending-price ("Dutch") auction engine
// that liquidates arbitrary tokens into a single settlement ("want") token.
//
// One engine manages many independent per-token auctions against one want:
//
//  1. Enable registers a token and computes its decimal scaler.
//  2. Kick starts an auction at the configured starting price over whatever
//     the kick source releases.
//  3. The price decays geometrically: every stepDuration the price drops by
//     stepDecayRate basis points, evaluated lazily from elapsed wall-clock
//     time — nothing runs between calls.
//  4. Take sells a chunk at the current price. The tokens go out first; the
//     taker may run a flash callback to source the payment with them; then
//     payment is pulled in the same call. Any failure unwinds everything.
//  5. When availability hits zero the auction settles implicitly. Settle
//     also clears expired auctions; Disable removes the slot entirely.
//
// All slot mutation is centralized in these lifecycle operations and guarded
// by one mutex, with a whole-engine reentrancy guard held across a take's
// external phase.
package auction

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dutch-auctioneer/internal/token"
	"dutch-auctioneer/pkg/types"
)

// slot is the per-token auction state. A zero kicked time means dormant:
// never kicked, or settled. Invariant: 0 <= currentAvailable <= initialAvailable.
type slot struct {
	tok      common.Address
	decimals uint8
	scaler   *big.Int // 10^(18-decimals), lifts native amounts into wad space
	unit     *big.Int // 10^decimals, one whole token in native precision

	kicked           time.Time
	initialAvailable *big.Int
	currentAvailable *big.Int
}

func (s *slot) snapshot() types.SlotSnapshot {
	var kickedAt int64
	if !s.kicked.IsZero() {
		kickedAt = s.kicked.Unix()
	}
	return types.SlotSnapshot{
		Token:            s.tok,
		Decimals:         s.decimals,
		KickedAt:         kickedAt,
		InitialAvailable: new(big.Int).Set(s.initialAvailable),
		CurrentAvailable: new(big.Int).Set(s.currentAvailable),
	}
}

// Config wires an Engine. Tokens, Params.Want, Params.Receiver,
// Params.Governance and Account are required; Source defaults to selling the
// engine account's balance, Store and Now are optional.
type Config struct {
	// Account is the engine's own token account: it holds the from-token
	// inventory being auctioned and acts as the allowance spender when
	// pulling want payments.
	Account common.Address
	Params  types.AuctionParams
	Tokens  *token.Registry
	Source  KickSource
	Store   SlotStore
	Logger  *slog.Logger
	Now     func() time.Time
}

// Engine is the auction house. All exported methods are safe for concurrent
// use; state transitions are strictly serialized.
type Engine struct {
	account    common.Address
	want       token.Token
	wantScaler *big.Int
	receiver   common.Address

	tokens *token.Registry
	source KickSource
	store  SlotStore
	logger *slog.Logger
	now    func() time.Time

	mu                sync.Mutex
	governance        common.Address
	pendingGovernance common.Address
	startingPriceWad  *big.Int
	stepDuration      time.Duration
	stepDecayRateBps  uint64
	slots             map[common.Address]*slot
	order             []common.Address // enumeration order of enabled tokens
	locked            bool             // reentrancy guard across external calls

	events chan types.AuctionEvent
}

// New validates the configuration, restores any persisted slots, and returns
// a ready engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("%w: token registry is required", ErrInvalidParams)
	}
	if err := validateParams(cfg.Params); err != nil {
		return nil, err
	}
	want, err := cfg.Tokens.Get(cfg.Params.Want)
	if err != nil {
		return nil, fmt.Errorf("want token: %w", err)
	}
	if d := want.Decimals(); d == 0 || d > types.MaxTokenDecimals {
		return nil, fmt.Errorf("%w: want reports %d decimals", ErrBadDecimals, d)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	source := cfg.Source
	if source == nil {
		source = &BalanceSource{Account: cfg.Account, Tokens: cfg.Tokens}
	}

	e := &Engine{
		account:          cfg.Account,
		want:             want,
		wantScaler:       types.DecimalScaler(want.Decimals()),
		receiver:         cfg.Params.Receiver,
		tokens:           cfg.Tokens,
		source:           source,
		store:            cfg.Store,
		logger:           logger.With("component", "auction"),
		now:              now,
		governance:       cfg.Params.Governance,
		startingPriceWad: new(big.Int).Set(cfg.Params.StartingPriceWad),
		stepDuration:     cfg.Params.StepDuration,
		stepDecayRateBps: cfg.Params.StepDecayRateBps,
		slots:            make(map[common.Address]*slot),
		events:           make(chan types.AuctionEvent, 128),
	}

	if e.store != nil {
		if err := e.restore(); err != nil {
			return nil, fmt.Errorf("restore slots: %w", err)
		}
	}
	return e, nil
}

func validateParams(p types.AuctionParams) error {
	if p.StartingPriceWad == nil || p.StartingPriceWad.Sign() <= 0 {
		return fmt.Errorf("%w: starting price must be positive", ErrInvalidParams)
	}
	if p.StepDuration <= 0 {
		return fmt.Errorf("%w: step duration must be positive", ErrInvalidParams)
	}
	if p.StepDecayRateBps >= types.BasisPointMax {
		return fmt.Errorf("%w: step decay rate %d bps must be below %d",
			ErrInvalidParams, p.StepDecayRateBps, types.BasisPointMax)
	}
	if p.Governance == (common.Address{}) {
		return fmt.Errorf("%w: governance address is required", ErrInvalidParams)
	}
	if p.Receiver == (common.Address{}) {
		return fmt.Errorf("%w: receiver address is required", ErrInvalidParams)
	}
	return nil
}

// restore reloads persisted slots. Tokens no longer in the registry are
// skipped with a warning so a config change can retire a token.
func (e *Engine) restore() error {
	snaps, err := e.store.LoadSlots()
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		tok, err := e.tokens.Get(snap.Token)
		if err != nil {
			e.logger.Warn("skipping persisted slot for unregistered token", "token", snap.Token.Hex())
			continue
		}
		s := &slot{
			tok:              snap.Token,
			decimals:         tok.Decimals(),
			scaler:           types.DecimalScaler(tok.Decimals()),
			unit:             types.Pow10(tok.Decimals()),
			initialAvailable: new(big.Int).Set(snap.InitialAvailable),
			currentAvailable: new(big.Int).Set(snap.CurrentAvailable),
		}
		if snap.KickedAt != 0 {
			s.kicked = time.Unix(snap.KickedAt, 0)
		}
		e.slots[snap.Token] = s
		e.order = append(e.order, snap.Token)
	}
	if len(e.slots) > 0 {
		e.logger.Info("restored auction slots", "count", len(e.slots))
	}
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Enable / Disable
// ————————————————————————————————————————————————————————————————————————

// Enable registers a token for auctioning. Governance-only. The token must
// not be the want, must not already be enabled, and must report a decimal
// count normalizable into wad space.
func (e *Engine) Enable(caller, fromToken common.Address) error {
	tok, err := e.tokens.Get(fromToken)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authLocked(caller); err != nil {
		return err
	}
	if fromToken == e.want.Address() {
		return ErrCannotAuctionWant
	}
	if _, ok := e.slots[fromToken]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyEnabled, fromToken.Hex())
	}
	if d := tok.Decimals(); d == 0 || d > types.MaxTokenDecimals {
		return fmt.Errorf("%w: %s reports %d decimals", ErrBadDecimals, fromToken.Hex(), d)
	}

	s := &slot{
		tok:              fromToken,
		decimals:         tok.Decimals(),
		scaler:           types.DecimalScaler(tok.Decimals()),
		unit:             types.Pow10(tok.Decimals()),
		initialAvailable: new(big.Int),
		currentAvailable: new(big.Int),
	}
	e.slots[fromToken] = s
	e.order = append(e.order, fromToken)
	e.saveLocked(s)

	e.logger.Info("auction enabled", "token", fromToken.Hex(), "decimals", s.decimals)
	e.emit(types.AuctionEvent{Type: types.EventEnabled, Token: fromToken, Timestamp: e.now()})
	return nil
}

// Disable removes a token's auction slot and index entry entirely, including
// historical price state. Governance-only. Equivalent to DisableAt with no
// hint.
func (e *Engine) Disable(caller, fromToken common.Address) error {
	return e.DisableAt(caller, fromToken, -1)
}

// DisableAt removes a slot using indexHint as the token's expected position
// in the enabled index. The hint is validated before use; a stale or
// negative hint falls back to a linear scan, so removal is always correct.
func (e *Engine) DisableAt(caller, fromToken common.Address, indexHint int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authLocked(caller); err != nil {
		return err
	}
	if e.locked {
		return ErrReentrantCall
	}
	if _, ok := e.slots[fromToken]; !ok {
		return fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}

	idx := -1
	if indexHint >= 0 && indexHint < len(e.order) && e.order[indexHint] == fromToken {
		idx = indexHint
	} else {
		for i, t := range e.order {
			if t == fromToken {
				idx = i
				break
			}
		}
	}
	// Swap-remove keeps removal O(1) once the position is known.
	last := len(e.order) - 1
	e.order[idx] = e.order[last]
	e.order = e.order[:last]

	delete(e.slots, fromToken)
	if e.store != nil {
		if err := e.store.DeleteSlot(fromToken); err != nil {
			e.logger.Error("failed to delete persisted slot", "token", fromToken.Hex(), "error", err)
		}
	}

	e.logger.Info("auction disabled", "token", fromToken.Hex())
	e.emit(types.AuctionEvent{Type: types.EventDisabled, Token: fromToken, Timestamp: e.now()})
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Kick
// ————————————————————————————————————————————————————————————————————————

// Kick starts (or restarts) the auction for a token. Permissionless. Fails
// while a previous kick still has availability outstanding — regardless of
// elapsed time — so bidders' expectations about a published decay curve are
// never discarded; an expired leftover must be settled first. The kick
// source's Release runs synchronously before state is finalized, and its
// failure aborts the kick. Returns the amount now available for sale.
func (e *Engine) Kick(ctx context.Context, fromToken common.Address) (*big.Int, error) {
	e.mu.Lock()
	if e.locked {
		e.mu.Unlock()
		return nil, ErrReentrantCall
	}
	s, ok := e.slots[fromToken]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}
	if !s.kicked.IsZero() && s.currentAvailable.Sign() > 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has %s remaining", ErrAuctionActive, fromToken.Hex(), s.currentAvailable)
	}
	// Hold the guard across the source call: Release may move funds and
	// must not interleave with another state transition.
	e.locked = true
	e.mu.Unlock()

	available, err := e.source.Release(ctx, fromToken)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = false

	if err != nil {
		return nil, fmt.Errorf("kick source: %w", err)
	}
	// Re-validate: governance may have disabled the slot while unlocked.
	s, ok = e.slots[fromToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}
	if available == nil || available.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToKick, fromToken.Hex())
	}

	s.kicked = e.now()
	s.initialAvailable = new(big.Int).Set(available)
	s.currentAvailable = new(big.Int).Set(available)
	e.saveLocked(s)

	e.logger.Info("auction kicked", "token", fromToken.Hex(), "available", available.String())
	e.emit(types.AuctionEvent{
		Type:      types.EventKicked,
		Token:     fromToken,
		Timestamp: s.kicked,
		Available: new(big.Int).Set(available),
	})
	return new(big.Int).Set(available), nil
}

// Kickable returns the amount a kick would sell right now: the source's
// estimate when a kick is currently permitted, zero otherwise.
func (e *Engine) Kickable(ctx context.Context, fromToken common.Address) (*big.Int, error) {
	e.mu.Lock()
	s, ok := e.slots[fromToken]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}
	if !s.kicked.IsZero() && s.currentAvailable.Sign() > 0 {
		e.mu.Unlock()
		return new(big.Int), nil
	}
	e.mu.Unlock()
	return e.source.Kickable(ctx, fromToken)
}

// ————————————————————————————————————————————————————————————————————————
// Pricing views
// ————————————————————————————————————————————————————————————————————————

// priceWadLocked returns the current price in wad space: want (whole units,
// 1e18 fixed point) per whole from-token unit. Zero means the decay has run
// to completion — the designed end-of-auction state, distinct from the
// ErrNotKicked failure for dormant slots or timestamps before the kick.
func (e *Engine) priceWadLocked(s *slot, at time.Time) (*big.Int, error) {
	if s.kicked.IsZero() || at.Before(s.kicked) {
		return nil, fmt.Errorf("%w: %s", ErrNotKicked, s.tok.Hex())
	}
	steps := uint64(at.Sub(s.kicked) / e.stepDuration)
	return mulDiv(e.startingPriceWad, decayWad(e.stepDecayRateBps, steps), types.Wad(), roundDown), nil
}

// Price returns the current price in want's native precision (want-wei per
// whole from-token unit). Fails with ErrNotKicked for dormant slots.
func (e *Engine) Price(fromToken common.Address) (*big.Int, error) {
	return e.PriceAt(fromToken, e.now())
}

// PriceAt evaluates Price at an arbitrary timestamp. Pure with respect to
// elapsed time: the same timestamp always yields the same price.
func (e *Engine) PriceAt(fromToken common.Address, at time.Time) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[fromToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}
	priceWad, err := e.priceWadLocked(s, at)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Div(priceWad, e.wantScaler), nil
}

// AmountNeeded returns how much want a taker owes right now for amountToTake
// of the auctioned token.
func (e *Engine) AmountNeeded(fromToken common.Address, amountToTake *big.Int) (*big.Int, error) {
	return e.AmountNeededAt(fromToken, amountToTake, e.now())
}

// AmountNeededAt evaluates AmountNeeded at an arbitrary timestamp. The
// result is rounded up, in favor of the seller, so truncation never
// underpays the receiver.
func (e *Engine) AmountNeededAt(fromToken common.Address, amountToTake *big.Int, at time.Time) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[fromToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}
	priceWad, err := e.priceWadLocked(s, at)
	if err != nil {
		return nil, err
	}
	return e.amountNeededLocked(s, priceWad, amountToTake), nil
}

// amountNeededLocked converts a wad price into want-wei owed for an amount
// in the from token's native precision:
//
//	needed = ceil(priceWad * amount / (10^fromDecimals * wantScaler))
func (e *Engine) amountNeededLocked(s *slot, priceWad, amount *big.Int) *big.Int {
	denom := new(big.Int).Mul(s.unit, e.wantScaler)
	return mulDiv(priceWad, amount, denom, roundUp)
}

// Available returns the remaining sellable amount: currentAvailable while
// the auction is live and unexpired, zero otherwise.
func (e *Engine) Available(fromToken common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[fromToken]
	if !ok {
		return new(big.Int)
	}
	priceWad, err := e.priceWadLocked(s, e.now())
	if err != nil || priceWad.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(s.currentAvailable)
}

// ————————————————————————————————————————————————————————————————————————
// Take
// ————————————————————————————————————————————————————————————————————————

// Take purchases up to maxAmount of a live auction's tokens at the current
// price, sending them to receiver (the taker itself when receiver is the
// zero address) and pulling payment from the taker's want allowance.
// Returns the amount actually taken.
func (e *Engine) Take(ctx context.Context, taker, fromToken common.Address, maxAmount *big.Int, receiver common.Address) (*big.Int, error) {
	return e.TakeWithCallback(ctx, taker, fromToken, maxAmount, receiver, nil, nil)
}

// TakeWithCallback is Take with a flash phase: when data is non-empty, the
// callback runs after the tokens are transferred out but before payment is
// pulled, so the taker can source the want with the tokens it just received.
//
// The whole call is atomic. Tokens out, callback, and payment either all
// succeed or the token ledgers and slot state are reverted to their values
// before the call. Availability is decremented before the callback runs;
// reads from inside the callback observe the reduced amount, and mutating
// engine calls from inside it fail with ErrReentrantCall.
func (e *Engine) TakeWithCallback(
	ctx context.Context,
	taker, fromToken common.Address,
	maxAmount *big.Int,
	receiver common.Address,
	data []byte,
	callback TakerCallback,
) (*big.Int, error) {
	if receiver == (common.Address{}) {
		receiver = taker
	}

	fromTok, err := e.tokens.Get(fromToken)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.locked {
		e.mu.Unlock()
		return nil, ErrReentrantCall
	}
	s, ok := e.slots[fromToken]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}

	now := e.now()
	priceWad, err := e.priceWadLocked(s, now)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if priceWad.Sign() == 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAuctionExpired, fromToken.Hex())
	}
	if s.currentAvailable.Sign() == 0 || maxAmount == nil || maxAmount.Sign() <= 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNothingAvailable, fromToken.Hex())
	}

	amountTaken := new(big.Int).Set(maxAmount)
	if amountTaken.Cmp(s.currentAvailable) > 0 {
		amountTaken.Set(s.currentAvailable)
	}
	amountNeeded := e.amountNeededLocked(s, priceWad, amountTaken)

	// Record everything needed to unwind, then apply the decrement before
	// any external call so a reentrant observer sees the reduced world.
	prevKicked := s.kicked
	prevInitial := new(big.Int).Set(s.initialAvailable)
	prevCurrent := new(big.Int).Set(s.currentAvailable)
	fromSnap := fromTok.Snapshot()
	wantSnap := e.want.Snapshot()

	s.currentAvailable = new(big.Int).Sub(s.currentAvailable, amountTaken)
	settled := s.currentAvailable.Sign() == 0
	if settled {
		// Implicitly settled: the next kick starts fresh.
		s.kicked = time.Time{}
		s.initialAvailable = new(big.Int)
	}
	e.locked = true
	e.mu.Unlock()

	fail := func(cause error) (*big.Int, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		fromTok.RevertToSnapshot(fromSnap)
		e.want.RevertToSnapshot(wantSnap)
		if cur, ok := e.slots[fromToken]; ok && cur == s {
			s.kicked = prevKicked
			s.initialAvailable = prevInitial
			s.currentAvailable = prevCurrent
		}
		e.locked = false
		return nil, cause
	}

	// Tokens out first: the taker can use them in the callback.
	if err := fromTok.Transfer(e.account, receiver, amountTaken); err != nil {
		return fail(fmt.Errorf("transfer auctioned tokens: %w", err))
	}

	if len(data) > 0 {
		if callback == nil {
			return fail(fmt.Errorf("take data supplied without a callback"))
		}
		if err := callback(ctx, fromToken, taker, new(big.Int).Set(amountTaken), new(big.Int).Set(amountNeeded), data); err != nil {
			return fail(fmt.Errorf("taker callback: %w", err))
		}
	}

	// Collect payment into the configured receiver, not the taker's choice.
	if err := e.want.TransferFrom(e.account, taker, e.receiver, amountNeeded); err != nil {
		return fail(fmt.Errorf("collect payment: %w", err))
	}

	e.mu.Lock()
	e.locked = false
	e.saveLocked(s)
	e.mu.Unlock()

	e.logger.Info("take executed",
		"token", fromToken.Hex(),
		"taker", taker.Hex(),
		"amount_taken", amountTaken.String(),
		"amount_paid", amountNeeded.String(),
		"settled", settled,
	)
	e.emit(types.AuctionEvent{
		Type:        types.EventTake,
		Token:       fromToken,
		Timestamp:   now,
		Taker:       taker,
		AmountTaken: new(big.Int).Set(amountTaken),
		AmountPaid:  new(big.Int).Set(amountNeeded),
	})
	if settled {
		e.emit(types.AuctionEvent{Type: types.EventSettled, Token: fromToken, Timestamp: now})
	}
	return amountTaken, nil
}

// ————————————————————————————————————————————————————————————————————————
// Settle / Sweep
// ————————————————————————————————————————————————————————————————————————

// Settle returns a fully-taken or expired auction slot to dormant without
// removing it from the enabled index. Permissionless. Fails cleanly on a
// dormant slot and on a live auction with remaining availability.
func (e *Engine) Settle(fromToken common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.locked {
		return ErrReentrantCall
	}
	s, ok := e.slots[fromToken]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}
	if s.kicked.IsZero() {
		return fmt.Errorf("%w: %s", ErrNotKicked, fromToken.Hex())
	}
	if s.currentAvailable.Sign() > 0 {
		priceWad, err := e.priceWadLocked(s, e.now())
		if err == nil && priceWad.Sign() > 0 {
			return fmt.Errorf("%w: %s", ErrAuctionActive, fromToken.Hex())
		}
	}

	s.kicked = time.Time{}
	s.initialAvailable = new(big.Int)
	s.currentAvailable = new(big.Int)
	e.saveLocked(s)

	e.logger.Info("auction settled", "token", fromToken.Hex())
	e.emit(types.AuctionEvent{Type: types.EventSettled, Token: fromToken, Timestamp: e.now()})
	return nil
}

// Sweep recovers tokens accidentally sent to the engine account, moving the
// full balance to governance. Governance-only. Refuses to touch a token
// with availability outstanding so a live sale can never be drained from
// underneath its bidders.
func (e *Engine) Sweep(caller, tok common.Address) error {
	t, err := e.tokens.Get(tok)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authLocked(caller); err != nil {
		return err
	}
	if e.locked {
		return ErrReentrantCall
	}
	if s, ok := e.slots[tok]; ok && s.currentAvailable.Sign() > 0 {
		return fmt.Errorf("%w: %s is mid-auction", ErrAuctionActive, tok.Hex())
	}

	balance := t.BalanceOf(e.account)
	if balance.Sign() == 0 {
		return fmt.Errorf("%w: no %s balance to sweep", ErrNothingAvailable, tok.Hex())
	}
	if err := t.Transfer(e.account, e.governance, balance); err != nil {
		return fmt.Errorf("sweep transfer: %w", err)
	}

	e.logger.Info("sweep executed", "token", tok.Hex(), "amount", balance.String())
	e.emit(types.AuctionEvent{
		Type:        types.EventSwept,
		Token:       tok,
		Timestamp:   e.now(),
		AmountTaken: balance,
	})
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Governance
// ————————————————————————————————————————————————————————————————————————

func (e *Engine) authLocked(caller common.Address) error {
	if caller != e.governance {
		return fmt.Errorf("%w: %s", ErrNotGovernance, caller.Hex())
	}
	return nil
}

// SetStartingPrice updates the price every future kick decays from, as a
// 1e18 fixed-point want-per-whole-unit value. Governance-only.
func (e *Engine) SetStartingPrice(caller common.Address, priceWad *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authLocked(caller); err != nil {
		return err
	}
	if priceWad == nil || priceWad.Sign() <= 0 {
		return fmt.Errorf("%w: starting price must be positive", ErrInvalidParams)
	}
	e.startingPriceWad = new(big.Int).Set(priceWad)
	e.emit(types.AuctionEvent{
		Type: types.EventStartingPriceSet, Timestamp: e.now(), Detail: priceWad.String(),
	})
	return nil
}

// SetStepDecayRate updates the per-step price reduction in basis points.
// Governance-only. 10000 (full decay in one step) is rejected.
func (e *Engine) SetStepDecayRate(caller common.Address, bps uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authLocked(caller); err != nil {
		return err
	}
	if bps >= types.BasisPointMax {
		return fmt.Errorf("%w: step decay rate %d bps must be below %d", ErrInvalidParams, bps, types.BasisPointMax)
	}
	e.stepDecayRateBps = bps
	e.emit(types.AuctionEvent{
		Type: types.EventStepDecayRateSet, Timestamp: e.now(), Detail: fmt.Sprintf("%d", bps),
	})
	return nil
}

// SetStepDuration updates the length of one decay step. Governance-only.
func (e *Engine) SetStepDuration(caller common.Address, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authLocked(caller); err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("%w: step duration must be positive", ErrInvalidParams)
	}
	e.stepDuration = d
	e.emit(types.AuctionEvent{
		Type: types.EventStepDurationSet, Timestamp: e.now(), Detail: d.String(),
	})
	return nil
}

// TransferGovernance proposes a new governance address. The handoff only
// completes when the proposed address calls AcceptGovernance, so authority
// can never be transferred to an address that cannot act.
func (e *Engine) TransferGovernance(caller, next common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authLocked(caller); err != nil {
		return err
	}
	if next == (common.Address{}) {
		return fmt.Errorf("%w: pending governance cannot be the zero address", ErrInvalidParams)
	}
	e.pendingGovernance = next
	e.emit(types.AuctionEvent{
		Type: types.EventGovernanceProposed, Timestamp: e.now(), Detail: next.Hex(),
	})
	return nil
}

// AcceptGovernance completes a pending governance handoff. Only the
// proposed address may call it.
func (e *Engine) AcceptGovernance(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pendingGovernance == (common.Address{}) || caller != e.pendingGovernance {
		return fmt.Errorf("%w: %s", ErrNotPendingGovernance, caller.Hex())
	}
	e.governance = caller
	e.pendingGovernance = common.Address{}
	e.emit(types.AuctionEvent{
		Type: types.EventGovernanceXfer, Timestamp: e.now(), Detail: caller.Hex(),
	})
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Read-only accessors
// ————————————————————————————————————————————————————————————————————————

// Want returns the settlement token's address.
func (e *Engine) Want() common.Address { return e.want.Address() }

// Account returns the engine's own token account.
func (e *Engine) Account() common.Address { return e.account }

// Receiver returns the address credited with settlement proceeds.
func (e *Engine) Receiver() common.Address { return e.receiver }

// Governance returns the current governance address.
func (e *Engine) Governance() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.governance
}

// PendingGovernance returns the proposed-but-unaccepted governance address,
// or the zero address when no handoff is pending.
func (e *Engine) PendingGovernance() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingGovernance
}

// StartingPrice returns the configured starting price in wad space.
func (e *Engine) StartingPrice() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.startingPriceWad)
}

// StepDuration returns the length of one decay step.
func (e *Engine) StepDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepDuration
}

// StepDecayRate returns the per-step decay in basis points.
func (e *Engine) StepDecayRate() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepDecayRateBps
}

// IsEnabled reports whether the token has an auction slot.
func (e *Engine) IsEnabled(fromToken common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.slots[fromToken]
	return ok
}

// EnabledTokens returns the enabled tokens in index order.
func (e *Engine) EnabledTokens() []common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]common.Address, len(e.order))
	copy(out, e.order)
	return out
}

// Slot returns a snapshot of one enabled auction's state.
func (e *Engine) Slot(fromToken common.Address) (types.SlotSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[fromToken]
	if !ok {
		return types.SlotSnapshot{}, fmt.Errorf("%w: %s", ErrNotEnabled, fromToken.Hex())
	}
	return s.snapshot(), nil
}

// Slots returns snapshots of every enabled auction in index order.
func (e *Engine) Slots() []types.SlotSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.SlotSnapshot, 0, len(e.order))
	for _, tok := range e.order {
		out = append(out, e.slots[tok].snapshot())
	}
	return out
}

// Events returns the lifecycle event stream. Single consumer; events are
// dropped rather than blocking the engine when the consumer falls behind.
func (e *Engine) Events() <-chan types.AuctionEvent {
	return e.events
}

// emit sends an event without blocking, dropping the oldest on overflow.
func (e *Engine) emit(evt types.AuctionEvent) {
	select {
	case e.events <- evt:
	default:
		select {
		case <-e.events:
		default:
		}
		select {
		case e.events <- evt:
		default:
		}
	}
}

// saveLocked persists the slot snapshot. Caller holds the mutex.
func (e *Engine) saveLocked(s *slot) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveSlot(s.snapshot()); err != nil {
		e.logger.Error("failed to persist slot", "token", s.tok.Hex(), "error", err)
	}
}
