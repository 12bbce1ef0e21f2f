package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/eiim/monitor/internal/api"
	"github.com/eiim/monitor/internal/cache"
	"github.com/eiim/monitor/internal/collector"
	"github.com/eiim/monitor/internal/config"
	"github.com/eiim/monitor/internal/llm"
	"github.com/eiim/monitor/internal/logging"
	"github.com/eiim/monitor/internal/scheduler"
	"github.com/eiim/monitor/internal/service"
	"github.com/eiim/monitor/internal/store"
	"github.com/eiim/monitor/pkg/models"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db open")
	}
	// db might still be starting in docker, ping and wait
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("waiting for db")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to db")
	}

	if err := store.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}
	repo := store.NewPgStore(db)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := repo.SeedSources(seedCtx, sourcesFromConfig(cfg.Sources)); err != nil {
		log.Fatal().Err(err).Msg("seed sources")
	}
	cancelSeed()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	var kv cache.Cache
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, using in-process cache")
		kv = cache.NewMemory()
	} else {
		kv = cache.NewRedis(rdb, log)
	}
	cancelPing()

	llmClient := llm.NewClient(cfg.OpenRouter, kv, log, nil)
	if !llmClient.Enabled() {
		log.Warn().Msg("no OpenRouter key configured, using extractive fallbacks")
	}

	news := collector.NewNewsCollector(repo, llmClient, log)
	prices := collector.NewPriceCollector(repo, kv, log)
	ecoMetrics := collector.NewMetricsCollector(repo, kv, log)
	briefs := collector.NewBriefAssembler(repo, llmClient, log)

	svc := service.NewService(repo, news, prices, ecoMetrics, briefs, llmClient, log)

	orch, err := scheduler.New(cfg.Schedule, scheduler.Jobs{
		CollectNews:    svc.RunNewsCollection,
		CollectPrices:  svc.RunPriceCollection,
		CollectMetrics: svc.RunMetricsCollection,
		GenerateBrief: func(ctx context.Context) error {
			_, err := svc.GenerateBrief(ctx, time.Time{}, false)
			return err
		},
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
	orch.Start()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.RegisterRoutes(router, api.NewHandler(svc))

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	orch.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func sourcesFromConfig(srcs []config.SourceConfig) []models.DataSource {
	out := make([]models.DataSource, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, models.DataSource{Name: s.Name, URL: s.URL, SourceType: s.Type})
	}
	return out
}
