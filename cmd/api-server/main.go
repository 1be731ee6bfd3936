package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/slotboard/booking-service/internal/api"
	"github.com/slotboard/booking-service/internal/booking"
	"github.com/slotboard/booking-service/internal/clock"
	"github.com/slotboard/booking-service/internal/config"
	"github.com/slotboard/booking-service/internal/db"
	"github.com/slotboard/booking-service/internal/notify"
	redisclient "github.com/slotboard/booking-service/internal/redis"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	// Connect Redis
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
	waitlist := redisclient.NewWaitlist(rdb)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	notifier := notify.NewRedisPublisher(rdb, cfg.NotifyChannel)
	clk := clock.NewRealClock()

	queueSvc := booking.NewQueueService(repo, waitlist, locker, notifier, clk)
	slotSvc := booking.NewSlotService(repo, waitlist, locker, notifier, clk, cfg)
	apptSvc := booking.NewAppointmentService(repo, queueSvc, locker, notifier, clk, cfg)

	router := api.NewRouter(api.RouterConfig{
		Slots:        slotSvc,
		Appointments: apptSvc,
		Queue:        queueSvc,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
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
		log.Printf("http server shutdown error: %v", err)
	}

	log.Println("api-server stopped")
}
