package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/private-doc-vault/docvault-backend-sub002/api/handlers"
	"github.com/private-doc-vault/docvault-backend-sub002/api/routes"
	cfg "github.com/private-doc-vault/docvault-backend-sub002/config"
	"github.com/private-doc-vault/docvault-backend-sub002/internal/service/processing"
	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

func main() {
	serverConfig := cfg.GetServerConfig()

	log, err := logger.NewLogger(
		logger.WithLevel(serverConfig.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/app.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	procService, err := processing.GetService(log)
	if err != nil {
		log.Fatal("Failed to initialize processing service", logger.Error(err))
	}

	webhookConfig := cfg.GetWebhookConfig()
	if webhookConfig.Secret == "" {
		log.Fatal("WEBHOOK_SECRET must be set; unsigned callbacks are not accepted")
	}

	h := handlers.NewHandlers(procService, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, routes.WebhookOptions{
		Secret:       webhookConfig.Secret,
		MaxBodyBytes: webhookConfig.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:    serverConfig.Addr,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", serverConfig.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server error", logger.Error(err))
	}
}
