package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/badge-comb/app/api"
	"github.com/lysyi3m/badge-comb/app/bookmark"
	"github.com/lysyi3m/badge-comb/app/cfg"
	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/lists"
	"github.com/lysyi3m/badge-comb/app/page"
	"github.com/lysyi3m/badge-comb/app/store"
	"github.com/lysyi3m/badge-comb/app/tasks"
)

func main() {
	config, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if config == nil {
		return
	}

	level := slog.LevelInfo
	if config.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Badge Comb", "version", config.Version, "base_url", config.BaseURL)

	db, err := store.Open()
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := store.NewStore(db)

	profile, err := page.LoadProfile(config.Profile)
	if err != nil {
		slog.Error("Failed to load page profile", "path", config.Profile, "error", err)
		os.Exit(1)
	}
	adapter, err := page.NewAdapter(profile)
	if err != nil {
		slog.Error("Failed to compile page profile", "error", err)
		os.Exit(1)
	}

	client, err := dom.NewClient(config.BaseURL, config.SessionCookie, config.UserAgent)
	if err != nil {
		slog.Error("Failed to create HTTP client", "error", err)
		os.Exit(1)
	}
	tab := dom.NewTab(client, adapter.Stylesheet())

	counter := bookmark.NewCounter(adapter, bookmark.NewClassifier(adapter.ArchivedAttribute()))
	scanner := lists.NewScanner(adapter)
	fetcher := lists.NewFetcher(client, adapter)

	scheduler := tasks.NewScheduler(tab, adapter, scanner, counter, fetcher, repo, config.ReloadInterval)
	scheduler.Start()
	defer scheduler.Stop()

	navCtx, cancelNav := context.WithTimeout(context.Background(), 30*time.Second)
	if err := tab.Navigate(navCtx, config.StartPath); err != nil {
		slog.Warn("Initial page load failed, waiting for reload", "path", config.StartPath, "error", err)
	} else {
		slog.Info("Page loaded", "location", tab.Location())
	}
	cancelNav()

	handler := api.NewHandler(scheduler, repo, tab, config.Version)
	server := api.NewServer(handler, config.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", config.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
}
