package main

import (
	"log"

	"github.com/rawblock/sanctions-screener/internal/api"
	"github.com/rawblock/sanctions-screener/internal/audit"
	"github.com/rawblock/sanctions-screener/internal/config"
	"github.com/rawblock/sanctions-screener/internal/db"
	"github.com/rawblock/sanctions-screener/internal/indexer"
	"github.com/rawblock/sanctions-screener/internal/sanctions"
	"github.com/rawblock/sanctions-screener/internal/screening"
)

func main() {
	log.Println("Starting Bitcoin Sanctions Screening Engine...")

	cfg := config.Load()

	// Persistence is optional: a missing or unreachable database only
	// disables verdict storage, never screening itself.
	var dbConn *db.PostgresStore
	if cfg.DatabaseURL != "" {
		conn, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: failed to connect to PostgreSQL, continuing without verdict persistence. Error: %v", err)
		} else {
			dbConn = conn
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set, verdict persistence disabled")
	}

	idxClient := indexer.NewClient(indexer.Config{
		BaseURL:   cfg.IndexerBaseURL,
		RateLimit: cfg.APIRateLimit,
	})

	sanctionsIndex := sanctions.NewIndex(sanctions.FileSource{Path: cfg.SanctionsFile()}, 0)
	if meta, err := sanctionsIndex.Metadata(); err != nil {
		log.Printf("Warning: sanctions list load failed, screening starts with an empty index: %v", err)
	} else {
		log.Printf("Sanctions index loaded: %d entities, %d addresses", meta.TotalEntities, meta.TotalAddresses)
	}

	auditLog := audit.New(cfg.AuditLogsDir)
	defer auditLog.Close()

	walker := screening.NewWalker(idxClient, sanctionsIndex, cfg.RiskCacheTTL)
	addressScreener := screening.NewAddressScreener(sanctionsIndex, walker, auditLog, cfg.DefaultMaxHops)
	txScreener := screening.NewTransactionScreener(idxClient, addressScreener, auditLog)

	wsHub := api.NewHub()
	go wsHub.Run()

	r := api.SetupRouter(api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		AuthToken:      cfg.APIAuthToken,
		RateLimitPerIP: cfg.APIRateLimit,
	}, addressScreener, txScreener, walker, sanctionsIndex, idxClient, auditLog, dbConn, wsHub)

	log.Printf("Screening engine running on :%s (indexer: %s)\n", cfg.Port, cfg.IndexerBaseURL)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
