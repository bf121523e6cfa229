package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maisonlumiere/booking/internal/booking"
	"github.com/maisonlumiere/booking/internal/config"
	"github.com/maisonlumiere/booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	days := 14
	if v := os.Getenv("SEED_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedServices(context.Background(), pool); err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedSlots(context.Background(), pool, cfg, days); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) error {
	services := []struct {
		name     string
		duration int
	}{
		{"Haircut", 30},
		{"Cut & Blow Dry", 60},
		{"Full Colour", 90},
		{"Highlights", 120},
		{"Beard Trim", 15},
		{"Manicure", 45},
		{"Pedicure", 60},
		{"Deep Conditioning", 30},
	}

	log.Printf("seeding %d services", len(services))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		id := uuid.New()
		price := gofakeit.Number(20, 180) * 100

		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, duration_minutes, price_cents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, s.name, s.duration, price)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("services seeded")
	return nil
}

// seedSlots lays down an open-hours grid (09:00-18:00) at the configured
// granularity for the coming days, skipping the weekly closed days.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, days int) error {
	log.Printf("seeding slots for %d days at %s granularity", days, cfg.SlotGranularity)

	today := booking.Midnight(time.Now(), cfg.Timezone)
	total := 0

	for d := 0; d < days; d++ {
		date := today.AddDate(0, 0, d)
		if cfg.ClosedWeekdays[date.Weekday()] {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		open := date.Add(9 * time.Hour)
		close := date.Add(18 * time.Hour)
		for at := open; at.Before(close); at = at.Add(cfg.SlotGranularity) {
			_, err := tx.Exec(ctx, `
				INSERT INTO time_slots (id, slot_date, start_at, available, created_at, updated_at)
				VALUES ($1, $2, $3, true, now(), now())
				ON CONFLICT (start_at) DO NOTHING
			`, uuid.New(), date.Format(booking.DateLayout), at)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
			total++
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	log.Printf("slots seeded: %d", total)
	return nil
}
