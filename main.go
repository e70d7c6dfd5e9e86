package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sendloop/config"
	"sendloop/middleware"
	"sendloop/queue"
	"sendloop/routes"
	"sendloop/scheduler"
	"sendloop/utils"
	"sendloop/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		})
		if err != nil {
			logger.WithError(err).Warn("sentry initialization failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := config.ConnectDB(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.Redis.Address,
		Password: config.AppConfig.Redis.Password,
		DB:       config.AppConfig.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deliveryQueue := queue.NewDeliveryQueue(rdb)

	// ========= Background workers =========
	sched := scheduler.New(
		config.DB,
		deliveryQueue,
		logger,
		time.Duration(config.AppConfig.SchedulerIntervalSeconds)*time.Second,
		config.AppConfig.SequenceDelayDuration(),
	)
	go sched.Start(ctx)

	mailer := utils.NewSMTPMailer(config.AppConfig.AppBaseURL, logger)
	deliveryWorker := worker.NewDeliveryWorker(
		config.DB,
		deliveryQueue,
		mailer,
		logger,
		config.AppConfig.WorkerConcurrency,
		config.AppConfig.WorkerRatePerSecond,
		time.Duration(config.AppConfig.WorkerSendTimeoutSec)*time.Second,
	)
	go deliveryWorker.Start(ctx)

	// ========= HTTP server =========
	app := fiber.New(fiber.Config{
		AppName: "sendloop",
	})
	app.Use(middleware.CORS())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	routes.SetupRoutes(app, config.DB, rdb, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down http server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("http shutdown failed")
		}
	}()

	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
