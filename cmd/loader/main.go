package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/miprootsaysak/yt-loader/internal/config"
	"github.com/miprootsaysak/yt-loader/internal/db"
	"github.com/miprootsaysak/yt-loader/internal/handler"
	"github.com/miprootsaysak/yt-loader/internal/middleware"
	"github.com/miprootsaysak/yt-loader/internal/repository"
	"github.com/miprootsaysak/yt-loader/internal/router"
	"github.com/miprootsaysak/yt-loader/internal/service"
	"github.com/miprootsaysak/yt-loader/internal/staging"
	"github.com/miprootsaysak/yt-loader/internal/youtube"
)

func main() {
	once := flag.Bool("once", false, "execute one pipeline run and exit")
	flag.Parse()

	cfg := config.Load()
	middleware.InitLogger(cfg.LogLevel, "yt-loader")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to warehouse: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Staging backend: Redis when configured, local files otherwise.
	var store staging.Store
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rs, err := staging.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis staging: %v", err)
		}
		store = rs
		rdb = rs.Client()
		log.Printf("staging backend: redis")
	} else {
		fs, err := staging.NewFileStore(cfg.StagingDir)
		if err != nil {
			log.Fatalf("failed to open staging dir: %v", err)
		}
		store = fs
		log.Printf("staging backend: file (%s)", cfg.StagingDir)
	}

	handler.InitMetrics(pool)

	api := youtube.NewClient(youtube.Config{
		APIKey:         cfg.YouTubeAPIKey,
		BaseURL:        cfg.APIBaseURL,
		PageSize:       cfg.PageSize,
		Timeout:        cfg.APITimeout,
		CallsPerMinute: cfg.CallsPerMinute,
		OnCall: func(endpoint, outcome string) {
			handler.Metrics.APIRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
		},
	})

	titles := repository.NewTitleRepo(pool)
	channels := repository.NewChannelRepo(pool)
	details := repository.NewVideoDetailRepo(pool)
	facts := repository.NewVideoFactRepo(pool)

	ingest := service.NewIngestService(api, store, cfg.PopularityThreshold, cfg.FetchWorkers)
	loads := service.NewLoadService(store, channels, details, facts)
	runs := service.NewRunService(titles, ingest, loads, store)

	if *once {
		report, err := runs.Run(ctx)
		if err != nil {
			log.Fatalf("run failed to start: %v", err)
		}
		if !report.Succeeded {
			log.Printf("run failed: %v", report.Err())
			os.Exit(1)
		}
		return
	}

	app := fiber.New(fiber.Config{
		AppName:      "yt-loader",
		ServerHeader: "yt-loader",
	})
	router.Setup(app, &router.Handlers{
		Health: handler.NewHealthHandler(pool, rdb),
		Run:    handler.NewRunHandler(runs),
	})

	log.Printf("yt-loader starting on :%s (env=%s)", cfg.Port, cfg.Environment)
	log.Fatal(app.Listen(":" + cfg.Port))
}
