package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/festival-comb/app/api"
	"github.com/lysyi3m/festival-comb/app/cfg"
	"github.com/lysyi3m/festival-comb/app/database"
	"github.com/lysyi3m/festival-comb/app/festival"
	"github.com/lysyi3m/festival-comb/app/session"
	"github.com/lysyi3m/festival-comb/app/tasks"
	"github.com/lysyi3m/festival-comb/app/upstream"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Festival Comb", "version", appCfg.Version, "upstream", appCfg.UpstreamURL)

	regions := festival.DefaultRegionTable()
	if appCfg.RegionsFile != "" {
		regions, err = festival.LoadRegionTable(appCfg.RegionsFile)
		if err != nil {
			slog.Error("Failed to load region table", "path", appCfg.RegionsFile, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Region table loaded", "regions", regions.Len())

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	schema, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", schema.Version, "applied", schema.Applied)

	client := upstream.NewClient(appCfg.UpstreamURL,
		upstream.WithHTTPClient(&http.Client{Timeout: appCfg.Timeout}),
		upstream.WithUserAgent(appCfg.UserAgent),
		upstream.WithLanguage(appCfg.Lang, appCfg.DetailLang),
		upstream.WithPageSize(appCfg.PageSize),
		upstream.WithEventStartDate(appCfg.EventStartDate),
		upstream.WithRateLimit(appCfg.RateLimit),
		upstream.WithRetry(appCfg.MaxRetries, 0),
	)

	detailRepo := database.NewDetailRepository(db)
	detailSource := database.NewCachingDetailSource(detailRepo, client, appCfg.DetailCacheTTL)

	scheduler := tasks.NewScheduler(appCfg.Timeout * time.Duration(appCfg.MaxRetries+1))
	defer scheduler.Stop()

	pipeline := festival.NewPipeline(regions)
	sources := session.Sources{Listing: client, Search: client, Detail: detailSource}
	opts := session.Options{
		PageSize:       client.PageSize(),
		DelegateRegion: appCfg.DelegateRegion,
		FeaturedCount:  appCfg.FeaturedCount,
	}

	registry := session.NewRegistry(func(id string) *session.Session {
		return session.New(id, pipeline, sources, scheduler, opts)
	}, appCfg.SessionTTL)

	if err := registry.StartJanitor(appCfg.JanitorSchedule); err != nil {
		slog.Error("Failed to start session janitor", "error", err)
		os.Exit(1)
	}
	defer registry.StopJanitor()

	maintenance := cron.New()
	if _, err := maintenance.AddFunc("@hourly", func() {
		deleted, err := detailSource.Prune()
		if err != nil {
			slog.Error("Failed to prune stored details", "error", err)
			return
		}
		if deleted > 0 {
			slog.Info("Pruned stored details", "deleted", deleted)
		}
	}); err != nil {
		slog.Error("Failed to schedule detail pruning", "error", err)
		os.Exit(1)
	}
	maintenance.Start()
	defer maintenance.Stop()

	handler := api.NewHandler(registry, detailRepo, regions, appCfg.BaseUrl, appCfg.Version)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}
