// Package trigger decides when dormant auctions should be kicked.
//
// The decision of whether to kick is deliberately kept outside the auction
// engine: the engine enforces preconditions strictly, while triggers are a
// tolerant advisory layer. A custom trigger (e.g. an HTTP policy service)
// can be layered over the default cooldown trigger with WithFallback, which
// swallows custom-trigger failures so a misbehaving policy endpoint never
// blocks the default kick path.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"dutch-auctioneer/pkg/types"
)

// Trigger answers whether a dormant token's auction should be kicked now.
// The slot snapshot carries the token's last-known state; implementations
// must treat it as read-only.
type Trigger interface {
	ShouldKick(ctx context.Context, tok common.Address, slot types.SlotSnapshot) (bool, error)
}

// ————————————————————————————————————————————————————————————————————————
// Cooldown
// ————————————————————————————————————————————————————————————————————————

// Cooldown is the default trigger: kick any dormant slot, but not more often
// than once per interval per token. The clock is injectable for tests.
type Cooldown struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[common.Address]time.Time
}

// NewCooldown builds the default trigger. now defaults to time.Now.
func NewCooldown(interval time.Duration, now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{
		interval: interval,
		now:      now,
		last:     make(map[common.Address]time.Time),
	}
}

// ShouldKick approves a dormant slot once its cooldown has elapsed, and
// records the approval so repeated polls do not re-fire inside the window.
func (c *Cooldown) ShouldKick(_ context.Context, tok common.Address, slot types.SlotSnapshot) (bool, error) {
	if !slot.Dormant() {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[tok]; ok && now.Sub(last) < c.interval {
		return false, nil
	}
	c.last[tok] = now
	return true, nil
}

// ————————————————————————————————————————————————————————————————————————
// HTTP
// ————————————————————————————————————————————————————————————————————————

// kickDecision is the policy service's response body.
type kickDecision struct {
	Kick   bool   `json:"kick"`
	Reason string `json:"reason,omitempty"`
}

// HTTP asks an external policy service whether to kick. The service receives
// the token address and slot state and replies {"kick": true|false}. Any
// transport or status failure is returned as an error; callers normally wrap
// this trigger in WithFallback.
type HTTP struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewHTTP builds an HTTP trigger against baseURL. The service is queried at
// POST /kick with retry on 5xx.
func NewHTTP(baseURL string, logger *slog.Logger) *HTTP {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &HTTP{http: client, logger: logger}
}

// ShouldKick posts the slot state to the policy service and returns its
// decision.
func (h *HTTP) ShouldKick(ctx context.Context, tok common.Address, slot types.SlotSnapshot) (bool, error) {
	payload := struct {
		Token string             `json:"token"`
		Slot  types.SlotSnapshot `json:"slot"`
	}{Token: tok.Hex(), Slot: slot}

	var decision kickDecision
	resp, err := h.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&decision).
		Post("/kick")
	if err != nil {
		return false, fmt.Errorf("kick policy: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("kick policy: status %d: %s", resp.StatusCode(), resp.String())
	}
	if h.logger != nil && decision.Reason != "" {
		h.logger.Debug("kick policy decision", "token", tok.Hex(), "kick", decision.Kick, "reason", decision.Reason)
	}
	return decision.Kick, nil
}

// ————————————————————————————————————————————————————————————————————————
// Fallback
// ————————————————————————————————————————————————————————————————————————

// fallbackTrigger consults a custom trigger first and falls back to the
// default when the custom one fails. Custom-trigger errors are logged, never
// propagated.
type fallbackTrigger struct {
	custom   Trigger
	fallback Trigger
	logger   *slog.Logger
}

// WithFallback wraps custom so that its failures defer to fallback instead
// of blocking the kick path. A nil custom trigger yields fallback directly.
func WithFallback(custom, fallback Trigger, logger *slog.Logger) Trigger {
	if custom == nil {
		return fallback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &fallbackTrigger{custom: custom, fallback: fallback, logger: logger}
}

func (f *fallbackTrigger) ShouldKick(ctx context.Context, tok common.Address, slot types.SlotSnapshot) (bool, error) {
	kick, err := f.custom.ShouldKick(ctx, tok, slot)
	if err == nil {
		return kick, nil
	}
	f.logger.Warn("custom trigger failed, using fallback", "token", tok.Hex(), "error", err)
	return f.fallback.ShouldKick(ctx, tok, slot)
}
