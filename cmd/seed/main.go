package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotboard/booking-service/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedSlots(context.Background(), pool, 25, 3); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

// seedSlots creates a working-hours grid of hourly slots for each of
// `providers` fake providers over the next `days` days.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, providers, days int) error {
	log.Printf("seeding slots for %d providers over %d days", providers, days)

	services := []string{
		"Dental checkup",
		"Haircut",
		"Physiotherapy session",
		"Eye exam",
		"Career coaching",
		"Tax consultation",
		"Vehicle inspection",
		"Massage therapy",
	}

	dayStart := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)
	total := 0

	for p := 0; p < providers; p++ {
		providerID := uuid.New()
		service := services[gofakeit.Number(0, len(services)-1)]

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for d := 0; d < days; d++ {
			day := dayStart.AddDate(0, 0, d)

			for hour := 9; hour < 17; hour++ {
				// Leave random gaps so the grid looks lived-in.
				if gofakeit.Number(0, 3) == 0 {
					continue
				}

				start := day.Add(time.Duration(hour) * time.Hour)
				end := start.Add(time.Hour)

				_, err := tx.Exec(ctx, `
					INSERT INTO slots (id, provider_id, description, start_time, end_time, status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, 'available', now(), now())
				`, uuid.New(), providerID, service+" with "+gofakeit.Name(), start, end)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
				total++
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	log.Printf("slots seeded: %d", total)
	return nil
}
