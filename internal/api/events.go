package api

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dutch-auctioneer/internal/token"
	"dutch-auctioneer/pkg/types"
)

// StreamEvent is the wrapper for all messages pushed over the WebSocket
type StreamEvent struct {
	Type      string      `json:"type"`      // "snapshot" or an auction lifecycle type
	Timestamp time.Time   `json:"timestamp"` // Event time
	Token     string      `json:"token"`     // Token address (empty for global events)
	Data      interface{} `json:"data"`      // Event-specific payload
}

// AuctionEventPayload carries a lifecycle event with amounts formatted in
// whole units. Fields are set only where meaningful for the event type.
type AuctionEventPayload struct {
	Available   string `json:"available,omitempty"`
	AmountTaken string `json:"amount_taken,omitempty"`
	AmountPaid  string `json:"amount_paid,omitempty"`
	Taker       string `json:"taker,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// NewStreamEvent converts an engine lifecycle event into its wire form.
// Amounts in the auctioned token use that token's decimals; payments use the
// want token's decimals.
func NewStreamEvent(evt types.AuctionEvent, tokens *token.Registry, wantDecimals uint8) StreamEvent {
	fromDecimals := uint8(18)
	if t, err := tokens.Get(evt.Token); err == nil {
		fromDecimals = t.Decimals()
	}

	payload := AuctionEventPayload{Detail: evt.Detail}
	if evt.Available != nil {
		payload.Available = formatUnits(evt.Available, fromDecimals)
	}
	if evt.AmountTaken != nil {
		payload.AmountTaken = formatUnits(evt.AmountTaken, fromDecimals)
	}
	if evt.AmountPaid != nil {
		payload.AmountPaid = formatUnits(evt.AmountPaid, wantDecimals)
	}
	if evt.Taker != (common.Address{}) {
		payload.Taker = evt.Taker.Hex()
	}
	return StreamEvent{
		Type:      string(evt.Type),
		Timestamp: evt.Timestamp,
		Token:     evt.Token.Hex(),
		Data:      payload,
	}
}
