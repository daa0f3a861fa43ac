package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dutch-auctioneer/internal/config"
	"dutch-auctioneer/internal/token"
	"dutch-auctioneer/pkg/types"
)

// Server runs the read-only HTTP/WebSocket API over the auction engine
type Server struct {
	cfg      config.APIConfig
	provider EngineProvider
	tokens   *token.Registry
	events   <-chan types.AuctionEvent
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a new API server. events is the engine's lifecycle
// stream; the server is its single consumer and fans events out to
// WebSocket clients.
func NewServer(
	cfg config.APIConfig,
	provider EngineProvider,
	tokens *token.Registry,
	events <-chan types.AuctionEvent,
	logger *slog.Logger,
) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, tokens, cfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		tokens:   tokens,
		events:   events,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the API server and hub. Blocks until the listener fails or
// Stop is called.
func (s *Server) Start() error {
	// Start WebSocket hub
	go s.hub.Run()

	// Start event fan-out
	go s.consumeEvents()

	s.logger.Info("api server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// consumeEvents reads lifecycle events from the engine and broadcasts them,
// each followed by a refreshed snapshot so clients never need to replay.
func (s *Server) consumeEvents() {
	if s.events == nil {
		return
	}

	wantDecimals := uint8(18)
	if w, err := s.tokens.Get(s.provider.Want()); err == nil {
		wantDecimals = w.Decimals()
	}

	for evt := range s.events {
		s.hub.BroadcastEvent(NewStreamEvent(evt, s.tokens, wantDecimals))
		s.hub.BroadcastSnapshot(BuildSnapshot(s.provider, s.tokens))
	}
}
