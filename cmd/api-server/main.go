package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/maisonlumiere/booking/internal/api"
	"github.com/maisonlumiere/booking/internal/booking"
	"github.com/maisonlumiere/booking/internal/config"
	"github.com/maisonlumiere/booking/internal/db"
	"github.com/maisonlumiere/booking/internal/notify"
	"github.com/maisonlumiere/booking/internal/observability/metrics"
	redisclient "github.com/maisonlumiere/booking/internal/redis"
)

var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s granularity=%s", cfg.Env, cfg.HTTPPort, cfg.SlotGranularity)

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

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}); sg != nil {
		sender = sg
		log.Println("email notifications enabled via SendGrid")
	} else {
		sender = notify.StubEmailSender{}
		log.Println("email notifications disabled, using stub sender")
	}

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisStartLocker(rdb, cfg.LockTTL)
	notifier := notify.NewService(sender, cfg.AdminEmail)
	bookingMetrics := metrics.NewBookingMetrics(nil)

	coordinator := booking.NewCoordinator(repo, locker, notifier, bookingMetrics, booking.CoordinatorConfig{
		Granularity:    cfg.SlotGranularity,
		Location:       cfg.Timezone,
		ClosedWeekdays: cfg.ClosedWeekdays,
	})

	router := api.NewRouter(api.RouterConfig{
		Service: coordinator,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
