package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/knowledgehub/knowledgehub-go/internal/cache"
	"github.com/knowledgehub/knowledgehub-go/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show KnowledgeHub configuration and backend status",
	Long:  `Display the effective configuration, document store connectivity, pending analysis backlog, and shared cache health.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("🔍 KnowledgeHub Status\n")
	fmt.Printf("%s\n", strings.Repeat("═", 50))

	fmt.Printf("\n📋 Configuration:\n")
	fmt.Printf("  Analysis mode: %s\n", cfg.Integration.AnalysisMode)
	fmt.Printf("  Batch size: %d\n", cfg.Processor.BatchSize)
	fmt.Printf("  Processing interval: %s\n", cfg.Processor.ProcessingInterval)
	fmt.Printf("  Discovery window: %s\n", cfg.Processor.DiscoveryWindow)
	fmt.Printf("  Result caching: %v\n", cfg.Cache.CacheAnalysisResults)

	fmt.Printf("\n🗄  Document Store:\n")
	if cfg.Storage.PostgresDSN == "" {
		fmt.Printf("  Status: ⚠️  Not configured (set POSTGRES_DSN)\n")
	} else {
		pg, err := store.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
		if err != nil {
			fmt.Printf("  Status: ❌ Unreachable: %v\n", err)
		} else {
			fmt.Printf("  Status: ✅ Connected\n")
			since := time.Now().Add(-cfg.Processor.DiscoveryWindow)
			missing, err := pg.ListMissingCorrelations(ctx, since, 10*cfg.Processor.BatchSize)
			if err == nil {
				fmt.Printf("  Pending analysis: %d document(s) in the discovery window\n", len(missing))
			}
			pg.Close()
		}
	}

	fmt.Printf("\n💾 Shared Cache:\n")
	if cfg.Cache.RedisAddr == "" {
		fmt.Printf("  Status: ⚠️  Not configured (in-process caching only)\n")
	} else {
		redisClient, err := cache.NewClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.TTL)
		if err != nil {
			fmt.Printf("  Status: ❌ Unreachable: %v\n", err)
		} else {
			if err := redisClient.HealthCheck(ctx); err != nil {
				fmt.Printf("  Status: ❌ Unhealthy: %v\n", err)
			} else {
				fmt.Printf("  Status: ✅ Healthy\n")
				fmt.Printf("  Result TTL: %s\n", cfg.Cache.TTL)
			}
			redisClient.Close()
		}
	}

	return nil
}
