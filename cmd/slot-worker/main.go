package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/maisonlumiere/booking/internal/booking"
	"github.com/maisonlumiere/booking/internal/config"
	"github.com/maisonlumiere/booking/internal/db"
	redisclient "github.com/maisonlumiere/booking/internal/redis"
)

// The slot worker periodically deletes past slots nobody reserved, keeping
// the time_slots table from growing without bound. Slots still held by a
// pending or accepted appointment are never touched.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("slot-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running slot worker in env=%s interval=%s", cfg.Env, cfg.WorkerInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisStartLocker(rdb, cfg.LockTTL)
	coordinator := booking.NewCoordinator(repo, locker, nil, nil, booking.CoordinatorConfig{
		Granularity:    cfg.SlotGranularity,
		Location:       cfg.Timezone,
		ClosedWeekdays: cfg.ClosedWeekdays,
	})

	runOnce(rootCtx, coordinator, cfg)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping slot worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, coordinator, cfg)
		}
	}
}

func runOnce(ctx context.Context, coordinator *booking.Coordinator, cfg config.Config) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	today := booking.Midnight(time.Now(), cfg.Timezone)

	start := time.Now()
	deleted, kept, err := coordinator.PruneSlots(runCtx, &today)
	if err != nil {
		log.Printf("prune run error: %v", err)
		return
	}
	log.Printf("prune run complete in %s deleted=%d kept=%d", time.Since(start), deleted, kept)
}
