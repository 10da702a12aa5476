package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/vantagesec/gatewarden/internal/logger"
	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/metrics"
	"github.com/vantagesec/gatewarden/pkg/middleware"
	"github.com/vantagesec/gatewarden/pkg/pipeline"
	"github.com/vantagesec/gatewarden/pkg/policy"
	"github.com/vantagesec/gatewarden/pkg/store"
	"github.com/vantagesec/gatewarden/pkg/version"
)

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	opts := []pipeline.Option{pipeline.WithLogger(log)}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		opts = append(opts,
			pipeline.WithNonceStore(policy.NewRedisNonceStore(client, "gatewarden:nonce:")),
			pipeline.WithStore(store.NewRedisStore(client, "", 0)),
		)
	} else if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		pg, err := store.NewPostgresStore(dsn)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		opts = append(opts, pipeline.WithStore(pg))
	} else {
		opts = append(opts, pipeline.WithStore(store.NewMemoryStore(0)))
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		log.WithError(err).Fatal("failed to build security pipeline")
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSweeper := p.StartSweeper(ctx, time.Minute)
	defer stopSweeper()

	app := fiber.New(fiber.Config{
		AppName:               version.AppName,
		DisableStartupMessage: true,
	})

	// Operational routes stay outside the security evaluation.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(version.GetInfo())
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	app.Use(middleware.Fiber(p))

	app.All("/*", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "admitted",
			"request_id": middleware.RequestID(c),
		})
	})

	addr := os.Getenv("GATEWARDEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":    addr,
			"version": version.Version,
		}).Info("gatewarden listening")
		if err := app.Listen(addr); err != nil {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Error("error shutting down server")
	}
}
