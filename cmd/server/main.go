package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"bizdash/backend/internal/cache"
	"bizdash/backend/internal/config"
	"bizdash/backend/internal/httpapi"
	"bizdash/backend/internal/service"
	"bizdash/backend/internal/sheets"
	"bizdash/backend/internal/store"
	"bizdash/backend/internal/store/memory"
	pgstore "bizdash/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if closeLog := setupLogging(cfg.LogFile); closeLog != nil {
		defer closeLog()
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	var repo store.Repository
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

	local, closeCache, err := cache.Open(ctx, cache.OpenOptions{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		SQLitePath:    cfg.LocalCachePath,
	})
	if err != nil {
		log.Fatalf("local cache: %v", err)
	}
	closers = append(closers, closeCache)

	hub := httpapi.NewHub(cfg.AllowedOrigin)
	svc := service.New(service.Options{
		Cache:    local,
		Repo:     repo,
		Sheets:   sheets.New(cfg.Sheets()),
		Notifier: service.MultiNotifier{service.LogNotifier{}, hub},
	})
	svc.Load(ctx)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, hub, cfg.AllowedOrigin)

	// No WriteTimeout: the notification websocket is long-lived and sheet
	// calls are bounded by SHEETS_TIMEOUT_SECONDS.
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("dashboard backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	hub.Close()
	svc.Wait()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// setupLogging mirrors the global logger into a rotated file when path is set.
func setupLogging(path string) func() error {
	if path == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
