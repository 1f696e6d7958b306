package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"chatrelay/internal/api"
	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/crypto"
	"chatrelay/internal/database"
	"chatrelay/internal/metrics"
	"chatrelay/internal/presence"
	"chatrelay/internal/ratelimit"
	"chatrelay/internal/reaction"
	"chatrelay/internal/room"
	"chatrelay/internal/websocket"
	"chatrelay/pkg/interfaces"
)

// limiterCleanupInterval paces the background sweep of stale rate-limit
// records.
const limiterCleanupInterval = 5 * time.Minute

// Application wires all components. Initialization order follows the
// dependency chain: log -> stores -> registry -> coordinator -> handler
// -> API -> HTTP; shutdown runs it in reverse.
type Application struct {
	config     *config.Config
	msgLog     *database.Log
	rooms      *room.Registry
	presence   *presence.Tracker
	reactions  *reaction.Store
	limiter    *ratelimit.Limiter
	registry   *websocket.Registry
	chatEngine *chat.Coordinator
	httpServer *http.Server
	stopClean  context.CancelFunc
}

func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	msgLog, err := database.NewLog(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize message log: %w", err)
	}

	rooms := room.NewRegistry()
	tracker := presence.NewTracker()
	reactions := reaction.NewStore()
	limiter := ratelimit.New(cfg.RateLimit.MaxMessages, cfg.RateLimit.Window, cfg.RateLimit.BanDuration)
	registry := websocket.NewRegistry(tracker)

	var cipher interfaces.Cipher
	if cfg.Chat.EncryptionKey != "" {
		cipher = crypto.New(cfg.Chat.EncryptionKey)
		log.Println("Payload encryption enabled")
	}

	chatEngine := chat.NewCoordinator(rooms, tracker, reactions, limiter, msgLog, registry, chat.Options{
		DefaultRoom:  cfg.Chat.DefaultRoom,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Cipher:       cipher,
	})

	wsHandler := websocket.NewHandler(registry, chatEngine, cfg.WebSocket)
	apiServer := api.NewServer(rooms, tracker, limiter, msgLog, registry)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.Handle("/metrics", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	metrics.RoomsTotal.Set(float64(rooms.Count()))

	return &Application{
		config:     cfg,
		msgLog:     msgLog,
		rooms:      rooms,
		presence:   tracker,
		reactions:  reactions,
		limiter:    limiter,
		registry:   registry,
		chatEngine: chatEngine,
		httpServer: httpServer,
	}, nil
}

// Start launches the limiter sweep and the HTTP server, returning once
// the server is accepting connections.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting chatrelay on %s", app.httpServer.Addr)

	cleanCtx, cancel := context.WithCancel(ctx)
	app.stopClean = cancel
	go app.cleanupLoop(cleanCtx)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		cancel()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("chatrelay started")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (app *Application) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			app.limiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// Stop shuts down in reverse dependency order: HTTP first so no new
// intents arrive, then the message log.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down chatrelay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if app.stopClean != nil {
		app.stopClean()
	}
	if err := app.msgLog.Close(); err != nil {
		log.Printf("Message log shutdown error: %v", err)
	}

	log.Printf("chatrelay shutdown complete")
	return nil
}

// Addr returns the server address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
