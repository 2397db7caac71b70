package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
	"uk.co.dudmesh.herald/internal/boot"
	"uk.co.dudmesh.herald/internal/engine"
	"uk.co.dudmesh.herald/internal/handlers"
	"uk.co.dudmesh.herald/internal/queuestore"
	"uk.co.dudmesh.herald/internal/telegram"
)

func main() {
	config, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	store, err := queuestore.Open(config.QueuePath)
	if err != nil {
		log.Fatalf("opening queue store: %+v", err)
	}
	defer store.Close()

	client, err := telegram.New(config.BotToken)
	if err != nil {
		log.Fatalf("creating telegram client: %+v", err)
	}

	workflow := engine.New(store, client)
	listener := telegram.NewListener(client, workflow)
	poller := engine.NewPoller(workflow, config.PollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go poller.Run(ctx)
	if !config.Telegram.UseWebhook {
		go listener.Run(ctx)
	}

	server := echo.New()
	server.HideBanner = true
	server.Use(middleware.BodyLimit("1M"))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddleware("herald"))
	server.Use(middleware.Recover())

	server.Logger.SetLevel(log.INFO)

	server.GET("/healthz", handlers.Healthz(store))
	server.POST("/queue", handlers.Enqueue(store, config.DefaultApproverID))
	if config.Telegram.UseWebhook {
		server.POST("/telegram/webhook", handlers.TelegramWebhook(listener, config.Telegram.WebhookSecret))
	}

	go func() {
		metrics := echo.New()
		metrics.HideBanner = true
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(":" + config.Server.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	go func() {
		if err := server.Start(":" + config.Server.Port); err != nil && err != http.ErrServerClosed {
			server.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Logger.Fatal(err)
	}
}
