package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hookflow-go/internal/services/webhook/server"
	"github.com/hookflow-go/pkg/config"
	"github.com/hookflow-go/pkg/logger"
)

func main() {
	cfg, err := config.Load("webhook-service")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logger)

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to create server", "error", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", "error", err)
	}

	log.Info("Webhook service exited")
}
