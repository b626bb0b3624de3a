package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fuelos/backend/internal/cache"
	"fuelos/backend/internal/config"
	"fuelos/backend/internal/httpapi"
	"fuelos/backend/internal/lock"
	"fuelos/backend/internal/logger"
	"fuelos/backend/internal/metrics"
	"fuelos/backend/internal/reconcile"
	"fuelos/backend/internal/service"
	"fuelos/backend/internal/store"
	"fuelos/backend/internal/store/memory"
	pgstore "fuelos/backend/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fuelos: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(); err != nil {
				_ = pg.Close()
				return fmt.Errorf("migrate: %w", err)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository ready", zap.String("backend", "postgres"), zap.Bool("migrated", cfg.AutoMigrate))
	} else {
		repo = memory.NewSeeded(log)
		log.Info("repository ready", zap.String("backend", "memory"))
	}

	opts := service.Options{
		RateCacheTTL: time.Duration(cfg.RateCacheTTLSeconds) * time.Second,
		Metrics:      metrics.New(),
		Logger:       log,
		Policy:       reconcile.Policy{VarianceWarnThreshold: cfg.VarianceWarnThreshold},
		Location:     location,
	}
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		rateCache := cache.NewRedisRateCache(rdb)
		if err := rateCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using in-process rate lookups and locks", zap.Error(err))
			_ = rdb.Close()
		} else {
			opts.RateCache = rateCache
			opts.Locker = lock.NewRedisLocker(rdb, time.Duration(cfg.SubmissionLockTTLSeconds)*time.Second)
			closers = append(closers, rdb.Close)
			log.Info("redis ready", zap.String("addr", cfg.RedisAddr))
		}
	}

	svc := service.New(repo, opts)
	auth, err := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	api, err := httpapi.New(svc, auth, cfg.AllowedOrigin, log, opts.Metrics)
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("fuelos backend listening", zap.String("addr", cfg.Address()), zap.String("timezone", cfg.Timezone))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.ManagerPIN) < 6 {
		return errors.New("MANAGER_PIN must be at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects non-numeric, repeated, sequential and
// well-known PINs.
func validatePINStrength(pin string) error {
	for _, r := range pin {
		if r < '0' || r > '9' {
			return errors.New("PIN must be numeric")
		}
	}
	switch pin {
	case "121212", "112233", "123123", "696969", "202020":
		return errors.New("common PIN not allowed")
	}

	allSame, ascending, descending := true, true, true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
		}
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if allSame {
		return errors.New("all-same-digit PIN not allowed")
	}
	if ascending || descending {
		return errors.New("sequential PIN not allowed")
	}
	return nil
}
