package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"taskmarket-backend/config"
	core "taskmarket-backend/core/marketplace"
	"taskmarket-backend/mcp"
	"taskmarket-backend/metrics"
	store "taskmarket-backend/storage/marketplace"
)

// seedLedger parses MARKET_SEED_PRINCIPALS ("alice:10000,bob:5000") and
// credits each principal on the mock ledger.
func seedLedger(ledger *core.MockLedger) {
	raw := os.Getenv("MARKET_SEED_PRINCIPALS")
	if raw == "" {
		return
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		amount, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || amount <= 0 {
			log.Printf("skipping seed entry %q: invalid amount", pair)
			continue
		}
		ledger.Seed(core.Principal(parts[0]), amount)
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("MARKET_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	var archive store.Archive
	switch cfg.StoreDriver {
	case "postgres":
		archive, err = store.NewPGArchive(ctx, cfg.PGDSN)
	case "sqlite":
		archive, err = store.NewSQLiteArchive(cfg.SQLitePath)
	default:
		archive = store.NewMemoryArchive()
	}
	if err != nil {
		log.Fatalf("failed to init archive: %v", err)
	}
	defer archive.Close()

	ledger := core.NewMockLedger()
	seedLedger(ledger)

	engine := core.NewEngine(ledger, core.Config{
		StakePercent:   cfg.StakePercent,
		StakeCapSats:   cfg.StakeCapSats,
		ForfeitPercent: cfg.ForfeitPercent,
		MinVerifiers:   cfg.MinVerifiers,
		MaxVerifiers:   cfg.MaxVerifiers,
		MaxSummaryLen:  cfg.MaxSummaryLen,
		Authority:      core.Principal(cfg.Authority),
	})

	store.Attach(ctx, engine, archive, func(err error) {
		log.Printf("archive append failed: %v", err)
	})

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		m.Observe(engine)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			log.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	mcpServer := mcp.NewServer(engine, archive, cfg.DefaultVoting)

	log.Printf("Task Marketplace MCP server starting (driver=%s)", cfg.StoreDriver)

	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
