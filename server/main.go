package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"matchengine/api"
	"matchengine/config"
	"matchengine/disconnect"
	"matchengine/ratings"
	"matchengine/series"
	"matchengine/storage"
	"matchengine/swap2"
	"matchengine/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err2 := godotenv.Load("server/.env"); err2 != nil {
			log.Print("No .env file found; using environment variables. For local dev, run from server/ or set AUTH_BASE_URL and HTTP_PORT.")
		}
	}

	cfg := config.Load()

	if cfg.AuthBaseURL == "" {
		log.Print("Auth: AUTH_BASE_URL is not set — requests will be treated as unauthenticated.")
	} else {
		log.Printf("Auth: configured (base URL: %s)", cfg.AuthBaseURL)
	}
	log.Printf("Configuration: BoardSize=%d, GamesToWin=%d, DisconnectTimeoutSec=%d, RematchWindowSec=%d, HTTPPort=%d",
		cfg.BoardSize, cfg.GamesToWin, cfg.DisconnectTimeoutSec, cfg.RematchWindowSec, cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seriesStore, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to series database: %v", err)
	}
	if seriesStore != nil {
		defer seriesStore.Close()
	}

	cachedStore, err := storage.NewCachedStore(ctx, seriesStore, cfg.RedisURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cachedStore.Close()

	var playerFetcher series.PlayerFetcher
	if cfg.RatingServiceURL != "" {
		playerFetcher = ratings.NewServiceClient(cfg.RatingServiceURL, cfg.RatingServiceTokenURL, cfg.RatingServiceClientID, cfg.RatingServiceClientSecret)
		log.Printf("Ratings: using external service at %s", cfg.RatingServiceURL)
	} else {
		ratingsStore, err := ratings.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to ratings database: %v", err)
		}
		if ratingsStore != nil {
			defer ratingsStore.Close()
		}
		playerFetcher = ratingsStore
		log.Print("Ratings: using local Postgres-backed store")
	}

	swap2Mgr := swap2.NewManager(cfg.BoardSize, nil)
	seriesMgr := series.NewManager(playerFetcher, cachedStore, cachedStore, swap2Mgr, cfg.GamesToWin, cfg.RematchWindowSec, nil, nil)
	if rdb := cachedStore.Underlying(); rdb != nil {
		seriesMgr.SetRematchStore(storage.NewRedisRematchStore(rdb, cfg.RematchWindowSec, nil))
		log.Print("Rematch handshake: using Redis-backed store (multi-instance safe)")
	}
	discMgr := disconnect.NewHandler(seriesMgr, func() int64 { return time.Now().Unix() }, cfg.DisconnectTimeoutSec, nil)
	if rdb := cachedStore.Underlying(); rdb != nil {
		discMgr.SetEntryStore(storage.NewRedisEntryStore(rdb))
		log.Print("Disconnect watchdog: using Redis-backed store (multi-instance safe)")
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	go pollDisconnectTimeouts(ctx, discMgr)

	handler := api.NewHandler(cfg, seriesMgr, swap2Mgr, discMgr, hub, nil)
	mux := http.NewServeMux()
	mux.Handle("/", handler.Router())
	mux.HandleFunc("/ws", hub.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Match engine listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// pollDisconnectTimeouts periodically checks every series with an active
// disconnect for an elapsed grace period, forfeiting the game if so. The
// watchdog itself carries no timer; this loop is its only clock.
func pollDisconnectTimeouts(ctx context.Context, discMgr *disconnect.Handler) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, seriesID := range discMgr.ActiveSeriesIDs() {
				if _, err := discMgr.CheckTimeout(ctx, seriesID); err != nil {
					log.Printf("disconnect timeout check failed for series %s: %v", seriesID, err)
				}
			}
		}
	}
}
