package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"meterease/internal/app"
	"meterease/internal/config"
)

func main() {
	cfg := config.Load()

	application, err := app.NewAuthApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize auth server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Failed to start auth server: %v", err)
	}
}
