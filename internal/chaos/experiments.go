// internal/chaos/experiments.go
package chaos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libris/internal/fault"
	"libris/internal/lending"
)

// StockRaceExperiment hammers one book with concurrent loan creations and
// verifies the stock invariant holds: no negative stock, and exactly as many
// loans succeed as there were copies on the shelf.
func (e *Engine) StockRaceExperiment(svc lending.Service, bookID, userID uuid.UUID, concurrency int) Experiment {
	negativeStockRows := Metric{
		Name: "negative_stock_rows",
		Query: func(ctx context.Context) (float64, error) {
			var n int
			err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE stock < 0`).Scan(&n)
			return float64(n), err
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}

	ledgerDrift := Metric{
		Name: "ledger_drift",
		Query: func(ctx context.Context) (float64, error) {
			// stock + open loans must never exceed what was ever on the
			// shelf; a negative drift row means a decrement without a loan
			// or vice versa.
			var n int
			err := e.db.QueryRowContext(ctx, `
				SELECT COUNT(*)
				FROM books b
				WHERE b.stock + (SELECT COUNT(*) FROM loans l WHERE l.book_id = b.id AND l.return_date IS NULL) < 0
			`).Scan(&n)
			return float64(n), err
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}

	return Experiment{
		Name:        "concurrent-loan-race",
		Hypothesis:  "Concurrent loan creations for one book never oversell its stock",
		SteadyState: []Metric{negativeStockRows, ledgerDrift},
		Inject: func(ctx context.Context) error {
			var initialStock int
			if err := e.db.QueryRowContext(ctx, `SELECT stock FROM books WHERE id = $1`, bookID).Scan(&initialStock); err != nil {
				return fmt.Errorf("read initial stock: %w", err)
			}

			var wg sync.WaitGroup
			var mu sync.Mutex
			successes, rejections := 0, 0

			for i := 0; i < concurrency; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.Create(ctx, lending.CreateLoanInput{
						BookID:   bookID.String(),
						UserID:   userID.String(),
						LoanDate: time.Now().UTC().Format(time.RFC3339),
					})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case fault.IsKind(err, fault.KindStockExhausted):
						rejections++
					}
				}()
			}
			wg.Wait()

			if successes > initialStock {
				return fmt.Errorf("oversold: %d loans created against stock %d", successes, initialStock)
			}
			if successes+rejections != concurrency {
				return fmt.Errorf("unexpected failures: %d successes + %d stock rejections != %d requests",
					successes, rejections, concurrency)
			}
			return nil
		},
		Validation: []Assertion{
			{
				Metric:    "negative_stock_rows",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "no book may end with negative stock",
			},
		},
	}
}

// PoolPressureExperiment holds most of the connection pool open and checks
// the database still answers simple queries within a request budget.
func (e *Engine) PoolPressureExperiment(held int, budget time.Duration) Experiment {
	responsive := Metric{
		Name: "db_responsive",
		Query: func(ctx context.Context) (float64, error) {
			ctx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()
			var one int
			if err := e.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
				return 0, nil
			}
			return 1, nil
		},
		Threshold: Threshold{Operator: "==", Value: 1},
	}

	return Experiment{
		Name:        "connection-pool-pressure",
		Hypothesis:  "Queries stay within the latency budget while the pool is under pressure",
		SteadyState: []Metric{responsive},
		Inject: func(ctx context.Context) error {
			conns := make([]*sqlx.Conn, 0, held)
			for i := 0; i < held; i++ {
				conn, err := e.db.Connx(ctx)
				if err != nil {
					break
				}
				conns = append(conns, conn)
			}
			defer func() {
				for _, conn := range conns {
					conn.Close()
				}
			}()

			ctx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()
			var one int
			if err := e.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
				return fmt.Errorf("query under pool pressure: %w", err)
			}
			return nil
		},
	}
}
