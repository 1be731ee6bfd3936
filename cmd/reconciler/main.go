package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/slotboard/booking-service/internal/booking"
	"github.com/slotboard/booking-service/internal/clock"
	"github.com/slotboard/booking-service/internal/config"
	"github.com/slotboard/booking-service/internal/db"
	"github.com/slotboard/booking-service/internal/notify"
	redisclient "github.com/slotboard/booking-service/internal/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reconciler starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running reconciler in env=%s interval=%s lookahead=%s",
		cfg.Env, cfg.ReconcileInterval, cfg.ReminderLookahead)

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
	rec := booking.NewReconciler(repo, queueSvc, notifier, clk, cfg)

	rec.Run(rootCtx)

	log.Println("reconciler stopped")
}
