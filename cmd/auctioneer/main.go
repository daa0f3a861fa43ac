// Dutch Auctioneer — a descending-price auction service that liquidates
// arbitrary tokens into a single settlement token.
//
// Architecture:
//
//	main.go              — entry point: loads config, wires everything, waits for SIGINT/SIGTERM
//	auction/engine.go    — auction house: enable/kick/take/settle/sweep lifecycle, governance
//	auction/price.go     — geometric decay pricing in 1e18 fixed point
//	auction/hooks.go     — kick source, taker flash callback, slot store interfaces
//	token/ledger.go      — in-memory token ledger with allowances and snapshot/revert
//	signature/           — ERC-1271-style order validation over live auction state
//	trigger/trigger.go   — kick policy: cooldown default, optional HTTP policy with fallback
//	keeper/keeper.go     — maintenance loop: settles expired auctions, kicks approved ones
//	store/store.go       — JSON file persistence for auction slots (survives restarts)
//	api/                 — read-only HTTP snapshot + WebSocket event stream
//
// How it sells:
//
//	Each enabled token auctions independently against the one want token.
//	A kick publishes the full inventory at the starting price; every step
//	the price drops by a fixed basis-point fraction until a taker buys or
//	the price decays to zero. Takers may flash-borrow the tokens they are
//	buying to source the payment within the same call.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dutch-auctioneer/internal/api"
	"dutch-auctioneer/internal/auction"
	"dutch-auctioneer/internal/config"
	"dutch-auctioneer/internal/keeper"
	"dutch-auctioneer/internal/store"
	"dutch-auctioneer/internal/token"
	"dutch-auctioneer/internal/trigger"
	"dutch-auctioneer/pkg/types"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("AUCTION_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Token ledgers
	account := common.HexToAddress(cfg.Engine.Account)
	registry := token.NewRegistry()
	for _, tc := range cfg.Tokens {
		ledger := token.NewLedger(common.HexToAddress(tc.Address), tc.Symbol, tc.Decimals)
		balance, err := tc.BalanceUnits()
		if err != nil {
			logger.Error("invalid token balance", "symbol", tc.Symbol, "error", err)
			os.Exit(1)
		}
		if balance.Sign() > 0 {
			ledger.Mint(account, balance)
		}
		registry.Register(ledger)
	}

	// Slot persistence
	slotStore, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open store", "error", err, "dir", cfg.Store.DataDir)
		os.Exit(1)
	}
	defer slotStore.Close()

	// Auction engine
	startingPrice, err := cfg.Engine.StartingPriceWad()
	if err != nil {
		logger.Error("invalid starting price", "error", err)
		os.Exit(1)
	}
	eng, err := auction.New(auction.Config{
		Account: account,
		Params: types.AuctionParams{
			Want:             common.HexToAddress(cfg.Engine.Want),
			Receiver:         common.HexToAddress(cfg.Engine.Receiver),
			Governance:       common.HexToAddress(cfg.Engine.Governance),
			StartingPriceWad: startingPrice,
			StepDuration:     cfg.Engine.StepDuration,
			StepDecayRateBps: cfg.Engine.StepDecayRateBps,
		},
		Tokens: registry,
		Store:  slotStore,
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create auction engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// API server if enabled
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API, eng, registry, eng.Events(), logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("api server failed", "error", err)
			}
		}()
		logger.Info("api started", "url", fmt.Sprintf("http://localhost:%d", cfg.API.Port))
	}

	// Keeper loop if enabled
	if cfg.Keeper.Enabled {
		trig := buildTrigger(cfg, logger)
		k := keeper.New(eng, trig, cfg.Keeper.PollInterval, logger)
		go k.Run(ctx)
	}

	logger.Info("dutch auctioneer started",
		"want", cfg.Engine.Want,
		"starting_price", cfg.Engine.StartingPrice,
		"step_duration", cfg.Engine.StepDuration.String(),
		"decay_bps", cfg.Engine.StepDecayRateBps,
		"tokens", len(cfg.Tokens),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop api server", "error", err)
		}
	}
	// Give the keeper a beat to finish an in-flight poll.
	time.Sleep(100 * time.Millisecond)
}

// buildTrigger assembles the kick policy: the cooldown trigger by default,
// with an HTTP policy service layered on top when configured. Policy
// failures fall back to the cooldown path.
func buildTrigger(cfg *config.Config, logger *slog.Logger) trigger.Trigger {
	cooldown := trigger.NewCooldown(cfg.Trigger.Cooldown, nil)
	if cfg.Trigger.PolicyURL == "" {
		return cooldown
	}
	return trigger.WithFallback(trigger.NewHTTP(cfg.Trigger.PolicyURL, logger), cooldown, logger)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
