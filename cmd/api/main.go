package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/config"
	"geoattend/internal/handler"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/queue"
	"geoattend/internal/schedule"
	"geoattend/internal/store"
)

const devSigningKey = "dev-signing-secret-change"

// backend is what the API needs from a store implementation.
type backend interface {
	attendance.Store
	attendance.TokenStore
}

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("api: %v", err)
	}
}

func run(cfg config.App) error {
	if cfg.Production() && cfg.JWTSigningKey == devSigningKey {
		return errors.New("JWT_SIGNING_KEY must be set in production")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	queueBackend := cfg.AuditQueue()
	if queueBackend != cfg.QueueBackend {
		log.Printf("queue: %s store needs the in-process audit queue, ignoring QUEUE_BACKEND=%s", cfg.StoreBackend, cfg.QueueBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table, err := schedule.Load(cfg.ScheduleFile)
	if err != nil {
		return err
	}
	log.Printf("schedule: %d groups in %s", len(table.Groups), table.Location())

	health := map[string]handler.HealthCheck{}

	var st backend
	switch cfg.StoreBackend {
	case "memory":
		log.Println("store: in-memory, data is lost on restart")
		st = attendance.NewMemoryStore()
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
		}
		st = attendance.NewRepository(db.Client)
		health["db"] = db.Healthy
	}

	var rdb *store.Redis
	if queueBackend != "memory" || cfg.LockBackend != "memory" || cfg.RateLimitBackend == "redis" {
		rdb = store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		health["redis"] = rdb.Healthy
	}

	var locker attendance.Locker = store.NewMemoryLocker()
	if cfg.LockBackend != "memory" {
		locker = store.NewRedisLocker(rdb.Client, cfg.LockTTL)
	}

	var q queue.Queue
	if queueBackend == "memory" {
		mem := queue.NewInMemory(256)
		q = mem
		// Nobody else can drain an in-process queue.
		go func() {
			if err := audit.Run(ctx, mem, st); err != nil {
				log.Printf("audit consumer stopped: %v", err)
			}
		}()
	} else {
		q = queue.NewRedisQueue(rdb.Client, cfg.AuditQueueKey)
	}

	var limiter httpmiddleware.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(rdb.Client, cfg.RateLimitPerMin)
	}

	svc := attendance.NewService(st, table, attendance.Options{
		Tolerance: cfg.CoordTolerance,
		Window:    cfg.SubmissionWindow,
		Locker:    locker,
		Audit:     audit.NewPublisher(q),
	})
	h := handler.New(svc, st, limiter, health, handler.Config{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		SignupCode: cfg.InstructorSignupCode,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on :%s (store=%s queue=%s lock=%s)", cfg.HTTPPort, cfg.StoreBackend, cfg.QueueBackend, cfg.LockBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	return nil
}
