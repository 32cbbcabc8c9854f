package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studiopos/backend/internal/cache"
	"studiopos/backend/internal/cart"
	"studiopos/backend/internal/config"
	"studiopos/backend/internal/domain"
	"studiopos/backend/internal/httpapi"
	"studiopos/backend/internal/service"
	"studiopos/backend/internal/store"
	"studiopos/backend/internal/store/memory"
	pgstore "studiopos/backend/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment as-is")
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	ensureSettings(ctx, repo, cfg.DefaultTaxRate)

	carts := cache.CartCache(cache.NoopCartCache{})
	if cfg.RedisAddr != "" {
		redisCarts := cache.NewRedisCartCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Duration(cfg.CartCacheTTLHours)*time.Hour)
		if err := redisCarts.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), carts will not survive restarts", err)
		} else {
			carts = redisCarts
			closers = append(closers, redisCarts.Close)
			log.Println("cart cache: redis")
		}
	} else {
		log.Println("cart cache: noop")
	}

	sessions := cart.NewSessions(carts, repo)
	svc := service.New(repo)
	api := httpapi.New(svc, sessions, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
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

	log.Println("server stopped")
}

// ensureSettings seeds a settings record when the store has none, so the
// tax rate is never silently zero on a fresh database.
func ensureSettings(ctx context.Context, repo store.Repository, defaultTaxRate float64) {
	_, err := repo.GetSettings(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("settings check failed: %v", err)
		return
	}

	if err := repo.PutSettings(ctx, domain.Settings{
		StoreName: "StudioPOS",
		TaxRate:   defaultTaxRate,
	}); err != nil {
		log.Printf("failed to seed settings: %v", err)
		return
	}
	log.Printf("settings seeded with tax rate %.2f", defaultTaxRate)
}
