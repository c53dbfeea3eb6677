package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rutzsco/custom-chat-copilot-go/internal/app"
	"github.com/rutzsco/custom-chat-copilot-go/internal/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()
	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer application.Close()

	// SIGINT/SIGTERM drain the server before the process exits.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		_ = application.Server.Shutdown(shutdownCtx)
	}()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
