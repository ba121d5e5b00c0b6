/**
 * @description
 * Worker Service Entry Point.
 * Responsible for background tasks:
 * 1. Serving the WebSocket event feed bridged from the Redis event channel.
 * 2. Recording price history points from the trade event stream.
 *
 * @dependencies
 * - internal/config
 * - internal/db
 * - internal/services
 * - internal/stream
 */

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vjbhandari61/prediction-market/internal/config"
	"github.com/vjbhandari61/prediction-market/internal/db"
	"github.com/vjbhandari61/prediction-market/internal/logger"
	"github.com/vjbhandari61/prediction-market/internal/services"
	"github.com/vjbhandari61/prediction-market/internal/stream"
)

func main() {
	logger.Info("🔥 Starting prediction market worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 2. Connect Redis; the worker is useless without the event channel.
	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Price history recorder (requires Postgres)
	if cfg.DB.URL != "" {
		pgDB, err := db.ConnectPostgres(cfg)
		if err != nil {
			logger.Fatal("Postgres connection failed: %v", err)
		}
		if err := db.Migrate(pgDB); err != nil {
			logger.Fatal("Failed to migrate journal tables: %v", err)
		}

		recorder := services.NewPriceRecorder(pgDB, redisClient)
		go func() {
			if err := recorder.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Price recorder stopped: %v", err)
			}
		}()
	} else {
		logger.Info("⚠️ DATABASE_URL not set; price history recording disabled")
	}

	// 4. WebSocket event feed
	hub := stream.NewFeedHub(redisClient, services.EventChannel)
	go func() {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Feed hub stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	server := &http.Server{
		Addr:              ":" + cfg.Server.FeedPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🚀 Event feed listening on port %s", cfg.Server.FeedPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Feed server failed: %v", err)
		}
	}()

	// 5. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down feed server: %v", err)
	}

	logger.Info("Worker exited.")
}
