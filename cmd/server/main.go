package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-reminder/backend/internal/cache"
	"task-reminder/backend/internal/config"
	"task-reminder/backend/internal/database"
	"task-reminder/backend/internal/handlers"
	"task-reminder/backend/internal/notify"
	"task-reminder/backend/internal/scheduler"
	"task-reminder/backend/internal/services"
	"task-reminder/backend/internal/worker"

	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("timezone %q: %v", cfg.Scheduler.Timezone, err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()

	dedup := cache.NewDedupStoreWithClient(redisClient, 2*cfg.Scheduler.EmailTolerance)
	if err := dedup.Ping(ctx); err != nil {
		log.Printf("redis unreachable, delivery dedup degrades to database only: %v", err)
	}

	pusher := notify.NewWebhookPusher(cfg.Notify.PushTimeout)
	var mailer notify.Mailer
	if cfg.Notify.SMTPAddr != "" {
		mailer = notify.NewSMTPMailer(cfg.Notify.SMTPAddr, cfg.Notify.MailFrom)
	} else {
		log.Println("SMTP_ADDR not set, email reminders run in dry-run mode")
		mailer = notify.LogMailer{}
	}

	deliveryWorker := worker.NewWorker(worker.Config{
		RedisClient:  redisClient,
		Queues:       cfg.Worker.Queues,
		PollInterval: cfg.Worker.PollInterval,
	})
	scheduler.NewDeliveryHandlers(db, pusher, mailer).Register(deliveryWorker)
	deliveryWorker.Start(cfg.Worker.Concurrency)
	defer deliveryWorker.Stop()

	scanner := scheduler.NewDueScanner(scheduler.ScannerConfig{
		DB:             db,
		Dedup:          dedup,
		Queue:          worker.NewJobQueue(redisClient),
		Location:       loc,
		PushTolerance:  cfg.Scheduler.PushTolerance,
		EmailTolerance: cfg.Scheduler.EmailTolerance,
	})
	if err := scanner.Start(cfg.Scheduler.ScanInterval); err != nil {
		log.Fatalf("scanner: %v", err)
	}
	defer scanner.Stop()

	taskService := services.NewTaskService()
	listService := services.NewTaskListService()
	router := handlers.NewRouter(handlers.RouterDeps{
		DB:       db,
		Config:   cfg,
		Auth:     services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.BCryptCost),
		Tasks:    taskService,
		Lists:    listService,
		Sync:     services.NewSyncService(taskService, listService),
		Mailer:   mailer,
		Location: loc,
	})

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.GetServerAddr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	log.Println("Shutdown complete.")
}
