package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/bg-remover/internal/api/handlers/order"
	"github.com/aliskhannn/bg-remover/internal/api/router"
	"github.com/aliskhannn/bg-remover/internal/api/server"
	"github.com/aliskhannn/bg-remover/internal/config"
	"github.com/aliskhannn/bg-remover/internal/infra/kafka/consumer"
	"github.com/aliskhannn/bg-remover/internal/infra/kafka/producer"
	ordermsg "github.com/aliskhannn/bg-remover/internal/kafka/handlers/order"
	"github.com/aliskhannn/bg-remover/internal/matting"
	"github.com/aliskhannn/bg-remover/internal/overlay"
	"github.com/aliskhannn/bg-remover/internal/pipeline"
	"github.com/aliskhannn/bg-remover/internal/processor"
	"github.com/aliskhannn/bg-remover/internal/repository/migrations"
	orderrepo "github.com/aliskhannn/bg-remover/internal/repository/order"
	ordersvc "github.com/aliskhannn/bg-remover/internal/service/order"
	"github.com/aliskhannn/bg-remover/internal/storage/file"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := migrations.Up(db.Master); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// Retry strategy for Kafka calls. The matting API is never retried.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	storage, err := file.NewStorage(
		ctx,
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.BucketName,
		cfg.Storage.UseSSL,
		cfg.Storage.SignExpiry,
	)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	repo := orderrepo.NewRepository(db.Master)
	p := producer.New(&cfg.Kafka, strategy)
	service := ordersvc.NewService(repo, p)

	fulfillment := pipeline.New(
		pipeline.Deps{
			Matting: matting.NewClient(
				cfg.Matting.APIKey,
				matting.WithEndpoint(cfg.Matting.Endpoint),
				matting.WithSize(cfg.Matting.Size),
				matting.WithHTTPClient(&http.Client{Timeout: cfg.Matting.Timeout}),
			),
			Overlay:   overlay.NewSource(cfg.Overlay.URL, &http.Client{Timeout: cfg.Overlay.Timeout}),
			Transform: processor.New(),
			Storage:   storage,
			Namer:     file.NewNamer(cfg.Storage.DeterministicPaths),
			Private:   repo,
			Orders:    ordersvc.NewStateMachine(repo),
		},
		pipeline.WithThumbnailBox(cfg.Thumbnail.Width, cfg.Thumbnail.Height),
	)

	// Kafka consumer drives the pipeline for every created order.
	createdHandler := ordermsg.NewCreatedHandler(fulfillment, repo)
	c := consumer.New(&cfg.Kafka, strategy, createdHandler)

	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	r := router.Setup(order.NewHandler(service))
	s := server.New(cfg.Server, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for the consumer to finish the order in flight.
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}

	if err = p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err = c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
