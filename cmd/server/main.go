package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"SectorCycles/internal/collector"
	"SectorCycles/internal/config"
	"SectorCycles/internal/notifier"
	"SectorCycles/internal/recorder"
	"SectorCycles/internal/scheduler"
	"SectorCycles/internal/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] SectorCycles starting...")

	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	periods, err := cfg.ResolvePeriods()
	if err != nil {
		log.Fatalf("[FATAL] resolve periods: %v", err)
	}

	fetcher := newFetcher(cfg)
	log.Printf("[INFO] data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, cfg.Fetch.MaxWorkers, collector.NewRateLimiter(cfg.Fetch.RateLimitPerMin))

	rec := newRecorder(cfg)
	defer rec.Close()

	var tn *notifier.TelegramNotifier
	var n notifier.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pipeline := scheduler.NewPipeline(col, rec, n, periods, cfg.Tickers, cfg.DefaultPeriod)

	// The page is only served once every pair has been attempted.
	if _, err := pipeline.Refresh(ctx); err != nil {
		log.Fatalf("[FATAL] initial refresh: %v", err)
	}

	sched := scheduler.NewScheduler(ctx, pipeline)
	if err := sched.RegisterRefresh(cfg.Schedule.RefreshCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.New(pipeline, server.Options{
			Refresher:    pipeline,
			RefreshToken: cfg.Server.RefreshToken,
			History:      rec,
		}).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("[INFO] listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] http server: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] shutdown: %v", err)
	}
	log.Println("[INFO] SectorCycles stopped")
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	ds := cfg.DataSource
	switch ds.Provider {
	case "financego":
		return collector.NewFinanceGoFetcher()
	case "alpaca":
		return collector.NewAlpacaFetcher(ds.APIKey, ds.APISecret, ds.BaseURL, ds.Feed)
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy)
	case "mock":
		return &collector.MockFetcher{Price: 100}
	default:
		return collector.NewYahooFetcher(cfg.Proxy)
	}
}

// newRecorder prefers PostgreSQL, then SQLite, and falls back to a no-op
// recorder when neither can be opened.
func newRecorder(cfg *config.Config) recorder.Recorder {
	if cfg.Database.PostgresURL != "" {
		pr, err := recorder.NewPostgresRecorder(cfg.Database.PostgresURL)
		if err == nil {
			return pr
		}
		log.Printf("[WARN] init postgres recorder failed: %v", err)
	}
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err == nil {
			return sr
		}
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
	}
	return recorder.NewNoopRecorder()
}
