// Package main is the entry point for the Turbo Tapper session server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/infra/storage"
	"github.com/MRamiBalles/TurboTapper/server/internal/network"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/config"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults when empty)")
	lowResource := flag.Bool("low", false, "Start from the low-resource preset instead of the production defaults")
	flag.Parse()

	log.Println("[TAPPER-SERVER] Initializing Turbo Tapper session server...")

	appLogger := logger.NewLogger()

	cfg, err := loadConfig(*configPath, *lowResource)
	if err != nil {
		appLogger.Error("Failed to load config: " + err.Error())
		os.Exit(1)
	}

	collector := metrics.Get()

	var (
		db          *sql.DB
		eventRepo   storage.EventRepository
		sessionRepo storage.SessionRepository
		persister   events.EventPersister
	)
	if cfg.Storage.Enabled {
		appLogger.Infof("Initializing SQLite journal '%s'...", cfg.Storage.Path)
		db, err = storage.InitSQLite(cfg.Storage.Path, cfg.Storage.MaxOpenConns)
		if err != nil {
			appLogger.Error("Failed to initialize SQLite: " + err.Error())
			os.Exit(1)
		}
		eventRepo = storage.NewSQLiteEventRepository(db)
		sessionRepo = storage.NewSQLiteSessionRepository(db)
		persister = storage.NewJournal(eventRepo, sessionRepo, collector)
	} else {
		appLogger.Warn("Journal storage disabled; events stay in memory only.")
	}

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(persister)
	eventLog.SetRetention(cfg.Storage.MemoryRetention)
	eventLog.OnPersistError(func(e events.GameEvent, err error) {
		if errors.Is(err, events.ErrPersistQueueFull) {
			collector.RecordEventDropped()
			return
		}
		appLogger.Errorf("Failed to journal %s for session %s: %v", e.Type, e.SessionID, err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(cfg, eventLog, collector, appLogger)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	network.NewJournalHandler(eventRepo, sessionRepo, eventLog, appLogger).RegisterRoutes(mux)
	mux.HandleFunc("/metrics", collector.Handler())
	mux.HandleFunc("/metrics/prometheus", collector.PrometheusHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"clients": hub.ClientCount(),
			"journal": cfg.Storage.Enabled,
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("[TAPPER-SERVER] HTTP API & WS Server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[TAPPER-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[TAPPER-SERVER] Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP shutdown: " + err.Error())
	}

	// Ending the hub ends every session, which journals SESSION_ENDED.
	cancel()
	<-hubDone
	waitForSessions(shutdownCtx, collector)

	eventLog.Close()
	if db != nil {
		db.Close()
	}
	log.Println("[TAPPER-SERVER] Bye.")
}

func loadConfig(path string, lowResource bool) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if lowResource {
		return config.LowResourceConfig(), nil
	}
	return config.DefaultConfig(), nil
}

// waitForSessions gives session loops time to journal their end before the log closes.
func waitForSessions(ctx context.Context, m *metrics.Collector) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for atomic.LoadInt64(&m.SessionsActive) > 0 {
		select {
		case <-ctx.Done():
			log.Printf("[TAPPER-SERVER] %d sessions still open at shutdown", atomic.LoadInt64(&m.SessionsActive))
			return
		case <-ticker.C:
		}
	}
}
