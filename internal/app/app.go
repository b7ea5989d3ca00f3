// Package app wires configuration, logging, storage, and the HTTP surface
// into a runnable game server process.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "punchgrounds/server"
	"punchgrounds/server/internal/auth"
	"punchgrounds/server/internal/profile"
)

// Run starts the server and blocks until the context is cancelled or a
// termination signal arrives.
func Run(ctx context.Context, configPath string) error {
	if err := server.ValidateTimings(); err != nil {
		return fmt.Errorf("inconsistent combat timings: %w", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	var profiles profile.Store
	if cfg.PostgresDSN != "" {
		store, err := profile.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		profiles = store
		logger.Infow("profile store ready", "backend", "postgres")
	} else {
		// No database configured: run against an in-memory store. Intended
		// for local development only.
		profiles = profile.NewMemoryStore()
		logger.Warnw("no postgres_dsn configured, using in-memory profile store")
	}

	roomCfg := server.DefaultRoomConfig()
	roomCfg.Validator = auth.NewJWTValidator(cfg.JWTSecret)
	roomCfg.Profiles = profiles
	roomCfg.Logger = logger
	if cfg.Room.MaxPlayers > 0 {
		roomCfg.MaxPlayers = cfg.Room.MaxPlayers
	}
	if cfg.Room.MaxQueuedInputs > 0 {
		roomCfg.MaxQueuedInputs = cfg.Room.MaxQueuedInputs
	}
	if w := cfg.Room.ReconnectionWindow(); w > 0 {
		roomCfg.ReconnectionWindow = w
	}
	if w := cfg.Room.InactivityTimeout(); w > 0 {
		roomCfg.InactivityTimeout = w
	}
	if w := cfg.Room.SweepInterval(); w > 0 {
		roomCfg.SweepInterval = w
	}

	manager := server.NewRoomManager(roomCfg)
	defer manager.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", manager.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"status":     "ok",
			"serverTime": time.Now().UnixMilli(),
			"rooms":      manager.DiagnosticsSnapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		board, ok := manager.Results(roomID)
		if !ok {
			http.Error(w, "unknown room", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"room": roomID, "results": board})
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	case sig := <-quit:
		logger.Infow("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
