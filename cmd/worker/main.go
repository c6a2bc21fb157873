package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/private-doc-vault/docvault-backend-sub002/config"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/indexer"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.GetServerConfig().LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	serverConfig := cfg.GetServerConfig()
	redisConfig := cfg.GetRedisConfig()

	idx := indexer.NewHTTPIndexer(serverConfig.IndexerBaseURL, 30*time.Second, log)

	workerCfg := &worker.Config{
		RedisAddr:     redisConfig.Addr,
		RedisPassword: redisConfig.Password,
		RedisDB:       redisConfig.DB,
		Concurrency:   serverConfig.Worker.Concurrency,
		Queues:        serverConfig.Worker.Queues,
	}

	indexWorker, err := worker.NewIndexWorker(workerCfg, idx, log)
	if err != nil {
		log.Error("Failed to create index worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := indexWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	indexWorker.Stop()
	log.Info("Worker stopped")
}
