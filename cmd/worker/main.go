package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/config"
	"geoattend/internal/queue"
	"geoattend/internal/store"
)

// Worker drains the audit stream published by the API into Postgres.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	if cfg.AuditQueue() == "memory" {
		log.Fatal("worker: the in-memory audit queue is consumed inside the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("%v", err)
		}
	}

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable, consumer will keep retrying", cfg.RedisAddr)
	}

	repo := attendance.NewRepository(db.Client)
	q := queue.NewRedisQueue(rdb.Client, cfg.AuditQueueKey)

	log.Printf("worker started, draining %s", cfg.AuditQueueKey)
	if err := audit.Run(ctx, q, repo); err != nil {
		log.Printf("worker: %v", err)
	}
	log.Println("worker stopped")
}
