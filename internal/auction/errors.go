package auction

import "errors"

// Error taxonomy. Every engine operation fails atomically with one of these
// (possibly wrapped with call-site context); there is no partial state
// change and no local retry.
var (
	// Configuration errors.
	ErrAlreadyEnabled  = errors.New("auction already enabled")
	ErrNotEnabled      = errors.New("auction not enabled")
	ErrCannotAuctionWant = errors.New("cannot auction the want token")
	ErrBadDecimals     = errors.New("token decimals out of range")
	ErrInvalidParams   = errors.New("invalid auction parameters")

	// Lifecycle errors.
	ErrNotKicked       = errors.New("not kicked")
	ErrAuctionActive   = errors.New("auction still active")
	ErrAuctionExpired  = errors.New("auction expired")
	ErrNothingToKick   = errors.New("nothing to kick")
	ErrNothingAvailable = errors.New("nothing available")

	// Reentrancy guard: a taker callback tried to mutate engine state
	// while a take was mid-settlement.
	ErrReentrantCall = errors.New("reentrant call")

	// Authorization errors.
	ErrNotGovernance        = errors.New("caller is not governance")
	ErrNotPendingGovernance = errors.New("caller is not pending governance")
)
