package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sportpos/backend/internal/cache"
	"sportpos/backend/internal/catalog"
	"sportpos/backend/internal/config"
	"sportpos/backend/internal/httpapi"
	"sportpos/backend/internal/ledger"
	"sportpos/backend/internal/ledger/pgstore"
	"sportpos/backend/internal/logging"
	"sportpos/backend/internal/service"
	"sportpos/backend/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logging.New("info", "console")
		fallbackLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	var ledgerStore ledger.Store
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with file fallback")
		}
		ledgerStore = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("ledger store: postgres")
	} else {
		ledgerStore = ledger.NewFileStore(cfg.InvoicePath(), log)
		log.Info().Str("path", cfg.InvoicePath()).Msg("ledger store: file")
	}

	led, err := ledger.Open(ctx, ledgerStore, cfg.MaxInvoices, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open invoice ledger")
	}

	cat, err := catalog.Open(ctx, catalog.NewFileStore(cfg.ProductPath(), log), cfg.MaxProducts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open product catalog")
	}

	usr, err := users.Open(ctx, cfg.UsersPath(), cfg.MaxUsers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open users store")
	}

	heldCache := cache.HeldCartCache(cache.NoopHeldCartCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisHeldCartCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop held-cart cache")
		} else {
			heldCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Msg("held-cart cache: redis")
		}
	} else {
		log.Info().Msg("held-cart cache: noop")
	}

	svc := service.New(cat, led, usr, heldCache, cfg.TaxRate, cfg.MaxCartLines, cfg.HeldCartTTL(), log)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), usr)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.DefaultTerminalID, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("POS backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	// Best-effort final write of both flat-file stores.
	if err := led.Flush(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ledger flush on shutdown failed")
	}
	if err := cat.Flush(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("catalog flush on shutdown failed")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}
