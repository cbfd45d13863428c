package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bumdespos/terminal/internal/cache"
	"bumdespos/terminal/internal/cart"
	"bumdespos/terminal/internal/config"
	"bumdespos/terminal/internal/gateway"
	"bumdespos/terminal/internal/httpapi"
	"bumdespos/terminal/internal/service"
	"bumdespos/terminal/internal/session"
	"bumdespos/terminal/internal/settings"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 1)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("timezone %q unavailable (%v), using local", cfg.Timezone, err)
		loc = time.Local
	}

	sessions := session.NewStore(cfg.DataDir)
	settingsStore := settings.NewStore(cfg.DataDir)
	gw := gateway.NewClient(cfg.GatewayBaseURL, sessions)

	snapshots := cache.SnapshotCache(cache.NoopSnapshotCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSnapshotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			snapshots = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("snapshot cache: redis")
		}
	} else {
		log.Println("snapshot cache: noop")
	}

	svc := service.New(
		gw,
		cart.NewRegistry(),
		sessions,
		settingsStore,
		snapshots,
		time.Duration(cfg.SnapshotTTLSeconds)*time.Second,
		loc,
	)
	api := httpapi.New(svc, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS terminal listening on %s (gateway %s)", cfg.Address(), cfg.GatewayBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal stopped")
}
