// cmd/chaos/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"libris/internal/catalog"
	"libris/internal/chaos"
	"libris/internal/config"
	"libris/internal/eventlog"
	"libris/internal/identity"
	"libris/internal/lending"
	"libris/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pg, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pg.Close()

	ctx := context.Background()
	if err := pg.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	events := eventlog.New(pg.DB())
	catalogSvc := catalog.NewService(pg, events)
	tokens := identity.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	identitySvc := identity.NewService(pg, events, tokens, 1000)
	lendingSvc := lending.NewService(pg, catalog.NewStore(), identity.NewStore(), events)

	// Seed a dedicated book and borrower for the run.
	suffix := uuid.NewString()[:8]
	book, err := catalogSvc.AddBook(ctx, "gameday-"+suffix, "Game Day "+suffix, "Chaos Crew", "", 5)
	if err != nil {
		log.Fatalf("seed book: %v", err)
	}
	user, err := identitySvc.Register(ctx, "gameday_"+suffix, "gameday_"+suffix+"@example.com", "GameDay#2024")
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}

	engine := chaos.NewEngine(pg.DB())
	experiments := []chaos.Experiment{
		engine.StockRaceExperiment(lendingSvc, book.ID, user.ID, 50),
		engine.PoolPressureExperiment(cfg.Database.MaxOpenConns-1, 2*time.Second),
	}

	fmt.Printf("🎮 Loan consistency game day (%d experiments)\n", len(experiments))
	failed := 0
	for i, exp := range experiments {
		fmt.Printf("\n🔬 Experiment %d/%d: %s\n", i+1, len(experiments), exp.Name)
		fmt.Printf("💡 Hypothesis: %s\n", exp.Hypothesis)

		result, err := engine.Run(ctx, exp)
		if err != nil {
			fmt.Printf("❌ Experiment failed: %v\n", err)
			failed++
			continue
		}

		if result.HypothesisHeld {
			fmt.Printf("✅ Hypothesis held (%s)\n", result.Duration)
		} else {
			failed++
			fmt.Printf("❌ Hypothesis violated\n")
			for _, v := range result.Violations {
				fmt.Printf("   - %s: expected %.2f, got %.2f\n", v.MetricName, v.Expected, v.Actual)
			}
		}
	}

	if failed > 0 {
		log.Fatalf("%d experiment(s) failed", failed)
	}
}
