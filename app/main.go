package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/prompt-comb/app/api"
	"github.com/lysyi3m/prompt-comb/app/cache"
	"github.com/lysyi3m/prompt-comb/app/cfg"
	"github.com/lysyi3m/prompt-comb/app/config"
	"github.com/lysyi3m/prompt-comb/app/content"
	"github.com/lysyi3m/prompt-comb/app/database"
	"github.com/lysyi3m/prompt-comb/app/feed"
	"github.com/lysyi3m/prompt-comb/app/snippet"
	"github.com/lysyi3m/prompt-comb/app/tasks"
	"github.com/lysyi3m/prompt-comb/app/workflow"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := new(slog.LevelVar)
	closeLog := setupLogging(logLevel, appCfg.LogFile)
	defer closeLog()

	settingsStore := config.NewStore(appCfg.SettingsFile)
	if err := settingsStore.Load(); err != nil {
		slog.Error("Failed to load settings", "file", appCfg.SettingsFile, "error", err)
		os.Exit(1)
	}
	settings := &levelSettings{Store: settingsStore, level: logLevel, forceDebug: appCfg.Debug}
	settings.apply(settingsStore.Get())

	slog.Info("Starting Prompt Comb", "version", appCfg.Version, "settings", appCfg.SettingsFile,
		"fetch_strategy", settingsStore.Get().FetchStrategy)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if appCfg.ResetDB {
		slog.Warn("Resetting database", "path", appCfg.DBPath)
		if err := database.ResetDatabase(db); err != nil {
			slog.Error("Failed to reset database", "error", err)
			os.Exit(1)
		}
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	snippetCache, closeCache := newCache(appCfg.RedisAddr)
	defer closeCache()

	posts := database.NewPostStore(db)
	snippets := database.NewSnippetStore(db)
	prompts := database.NewPromptStore(db)

	codeClient := snippet.NewClient(snippet.ClientOptions{
		UserAgent: appCfg.UserAgent,
		Timeout:   time.Duration(appCfg.GitHubTimeout) * time.Second,
		Token:     func() string { return settingsStore.Get().GitHubToken },
		Cache:     snippetCache,
		CacheTTL:  time.Duration(appCfg.SnippetCacheTTL) * time.Second,
	})

	fetcher := content.NewFetcher(appCfg.UserAgent, time.Duration(appCfg.FetchTimeout)*time.Second)
	requestTimeout, writeTimeout := requestTimeouts(appCfg)
	service := workflow.NewService(posts, snippets, prompts, fetcher, codeClient, settingsStore).
		WithTimeout(requestTimeout)

	scheduler := tasks.NewScheduler(service, &http.Client{}, feed.NewParser(), tasks.Options{
		WorkerCount:   appCfg.WorkerCount,
		SweepInterval: time.Duration(appCfg.SweepInterval) * time.Second,
		UserAgent:     appCfg.UserAgent,
		FeedTimeout:   time.Duration(appCfg.FetchTimeout) * time.Second,
	})
	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "sweep_interval", appCfg.SweepInterval)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(service, settings, scheduler, snippetCache, map[string]api.Counter{
		"posts":    posts,
		"snippets": snippets,
		"prompts":  prompts,
	})
	router := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Prompt Comb shutdown complete")
}

// requestTimeouts returns the workflow deadline and the HTTP write timeout,
// which always leaves room to send the reply after the deadline hits.
func requestTimeouts(appCfg *cfg.Cfg) (request, write time.Duration) {
	request = time.Duration(appCfg.RequestTimeout) * time.Second
	return request, request + 15*time.Second
}

type healthCache interface {
	cache.Cache
	cache.HealthReporter
}

// newCache connects to Redis when an address is configured and falls back to
// an in-process cache otherwise.
func newCache(redisAddr string) (healthCache, func()) {
	if redisAddr == "" {
		slog.Info("Using in-memory snippet cache")
		return cache.NewMemoryCache(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisCache, err := cache.NewRedisCache(ctx, redisAddr)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory snippet cache", "addr", redisAddr, "error", err)
		return cache.NewMemoryCache(), func() {}
	}

	slog.Info("Using Redis snippet cache", "addr", redisAddr)
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			slog.Warn("Failed to close Redis connection", "error", err)
		}
	}
}
