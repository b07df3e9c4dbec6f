package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/config"
	"github.com/erazemk/sowa/internal/db"
	"github.com/erazemk/sowa/internal/session"
	"github.com/erazemk/sowa/internal/store"
	"github.com/erazemk/sowa/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	level, _ := cfg.Level()
	closeLog, err := setupLogger(cfg.LogPath, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	database, err := db.OpenAndMigrate(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	slog.Info("database ready", "path", cfg.DBPath)

	secret := cfg.SessionSecret
	if secret == "" {
		// Generated on first run and kept in the database.
		if secret, err = store.GetSessionSecret(context.Background(), database); err != nil {
			return fmt.Errorf("loading session secret: %w", err)
		}
	}

	client, err := backend.New(backend.Config{
		BaseURL:     cfg.BackendURL(),
		AdminPrefix: cfg.AdminPrefix,
		Timeout:     cfg.APITimeout,
	})
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(database, client, session.Options{
		Secret:       secret,
		CacheStale:   cfg.CacheStale,
		SecureCookie: cfg.SecureCookie,
	})
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	if err := sessions.Start(); err != nil {
		return fmt.Errorf("starting session sweeper: %w", err)
	}
	defer sessions.Stop()

	site, err := web.NewServer(web.Options{
		Sessions:    sessions,
		AssetOrigin: cfg.AssetOrigin(),
		ProxyTarget: cfg.ProxyTarget,
		RateLimit:   cfg.RateLimit,
		TrustProxy:  cfg.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("setting up web server: %w", err)
	}
	defer site.Close()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           site.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "backend", cfg.BackendURL(), "proxy", cfg.ProxyTarget != "")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}
