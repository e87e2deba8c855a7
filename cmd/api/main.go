package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/passgage/auth-gateway/internal/infra/app"
	"github.com/passgage/auth-gateway/internal/infra/config"
)

func main() {
	// A missing .env is fine; the environment itself wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, err := app.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("assemble gateway: %v", err)
	}

	if err := gateway.Run(ctx); err != nil {
		log.Fatalf("run gateway: %v", err)
	}
}
