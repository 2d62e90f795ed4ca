package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/discounthunter/backend/config"
	httpDelivery "github.com/discounthunter/backend/internal/delivery/http"
	"github.com/discounthunter/backend/internal/domain"
	"github.com/discounthunter/backend/internal/infrastructure/cache"
	"github.com/discounthunter/backend/internal/infrastructure/jobstore"
	"github.com/discounthunter/backend/internal/infrastructure/ocrspace"
	"github.com/discounthunter/backend/internal/infrastructure/postgres"
	"github.com/discounthunter/backend/internal/infrastructure/pricelist"
	"github.com/discounthunter/backend/internal/infrastructure/scrapingbee"
	"github.com/discounthunter/backend/internal/infrastructure/stores"
	"github.com/discounthunter/backend/internal/usecase"
)

const version = "1.0.0"

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting DiscountHunter Backend v%s", version)
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Job store: %s, cache: %s (ttl %s)", cfg.JobStore.Type, cfg.Cache.Type, cfg.Cache.TTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Job store
	jobs, db, err := newJobRepository(ctx, cfg.JobStore)
	if err != nil {
		log.Fatalf("Failed to initialise job store: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	// Quote cache
	var quoteCache *cache.MemoryCache
	if cfg.Cache.Type == "memory" {
		quoteCache = cache.NewMemoryCache(0)
		defer quoteCache.Close()
	}

	// Store adapters
	registry, priceLists, err := buildRegistry(cfg, quoteCache)
	if err != nil {
		log.Fatalf("Failed to register stores: %v", err)
	}
	for _, info := range registry.List() {
		log.Printf("Store %s (%s): kind=%s enabled=%v", info.ID, info.Name, info.Kind, info.Enabled)
	}
	if cfg.ScrapingBee.APIKey == "" {
		log.Printf("WARNING: ScrapingBee API key not configured - store pages are fetched directly")
	}

	// Initialize usecase layer
	scrapeService := usecase.NewScrapeService(jobs, registry, usecase.ScrapeServiceConfig{
		AdapterTimeout: cfg.Scrape.AdapterTimeout,
		JobTimeout:     cfg.Scrape.JobTimeout,
		MaxConcurrency: cfg.Scrape.MaxConcurrency,
		MaxQueryLength: cfg.Scrape.MaxQueryLength,
	})

	var ocrClient domain.OCRClient
	if cfg.OCR.APIKey != "" {
		ocrClient = ocrspace.NewClient(cfg.OCR.APIKey, cfg.OCR.BaseURL)
		log.Printf("OCR configured: %s", cfg.OCR.BaseURL)
	} else {
		log.Printf("OCR not configured - /api/ocr returns %q", cfg.OCR.FallbackName)
	}
	ocrService := usecase.NewOCRService(ocrClient, cfg.OCR.FallbackName, cfg.Scrape.MaxQueryLength)

	go jobstore.RunJanitor(ctx, jobs, cfg.JobStore.Retention, cfg.JobStore.SweepInterval)
	go reloadOnHangup(ctx, priceLists)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(scrapeService, ocrService, registry, version)
	router := httpDelivery.SetupRouter(cfg, handler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := scrapeService.Shutdown(shutdownCtx); err != nil {
		log.Printf("Scrape service shutdown error: %v", err)
	}
	log.Printf("Shutdown complete")
}

// newJobRepository returns the configured job store. db is nil for the memory store.
func newJobRepository(ctx context.Context, cfg config.JobStoreConfig) (domain.JobRepository, *postgres.DB, error) {
	if cfg.Type != "postgres" {
		return jobstore.NewMemoryStore(), nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := postgres.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(connectCtx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Printf("Postgres job store ready")
	return postgres.NewJobStore(db), db, nil
}

// buildRegistry creates one adapter per configured store, each behind the quote cache.
// A nil cache disables caching.
func buildRegistry(cfg *config.Config, quoteCache *cache.MemoryCache) (*stores.Registry, []*pricelist.Adapter, error) {
	var cacheRepo domain.CacheRepository
	if quoteCache != nil {
		cacheRepo = quoteCache
	}

	registry := stores.NewRegistry()
	var priceLists []*pricelist.Adapter

	for _, store := range cfg.Stores {
		var adapter domain.StoreAdapter

		switch store.Kind {
		case config.StoreKindScrapingBee:
			client := scrapingbee.NewClient(scrapingbee.ClientConfig{
				Store:       store.Name,
				APIKey:      cfg.ScrapingBee.APIKey,
				BaseURL:     cfg.ScrapingBee.BaseURL,
				MaxAttempts: cfg.ScrapingBee.MaxAttempts,
				RatePerSec:  cfg.RateLimit.PerStore,
				Burst:       cfg.RateLimit.Burst,
			})
			client.SetDebug(cfg.Server.Environment == "development")
			adapter = scrapingbee.NewAdapter(scrapingbee.StoreConfig{
				ID:        store.ID,
				Name:      store.Name,
				SearchURL: store.SearchURL,
				Currency:  store.Currency,
				RenderJS:  store.RenderJS,
				WaitMS:    store.WaitMS,
			}, client)

		case config.StoreKindPriceList:
			priceList, err := pricelist.NewAdapter(pricelist.Config{
				ID:       store.ID,
				Name:     store.Name,
				Path:     store.PriceList,
				Currency: store.Currency,
			})
			if err != nil {
				if store.Enabled {
					return nil, nil, fmt.Errorf("store %s: %w", store.ID, err)
				}
				log.Printf("WARNING: skipping disabled store %s: %v", store.ID, err)
				continue
			}
			priceLists = append(priceLists, priceList)
			adapter = priceList

		default:
			return nil, nil, fmt.Errorf("store %s: unknown kind %q", store.ID, store.Kind)
		}

		if err := registry.Register(stores.WithCache(adapter, cacheRepo, cfg.Cache.TTL), store.Kind, store.Enabled); err != nil {
			return nil, nil, err
		}
	}

	return registry, priceLists, nil
}

// reloadOnHangup re-reads every price-list leaflet on SIGHUP
func reloadOnHangup(ctx context.Context, priceLists []*pricelist.Adapter) {
	if len(priceLists) == 0 {
		return
	}
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			for _, priceList := range priceLists {
				if err := priceList.Reload(); err != nil {
					log.Printf("[PRICELIST] Reload of %s failed: %v", priceList.Name(), err)
				}
			}
		}
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
