package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mhalvors/docchat/internal/config"
	"github.com/mhalvors/docchat/internal/document"
	"github.com/mhalvors/docchat/internal/engine"
	"github.com/mhalvors/docchat/internal/executor"
	"github.com/mhalvors/docchat/internal/registry"
	"github.com/mhalvors/docchat/internal/repository"
	"github.com/mhalvors/docchat/internal/session"
	api "github.com/mhalvors/docchat/internal/transport/http"
	"github.com/mhalvors/docchat/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting docchat backend...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseDSN)
	log.Printf("Upload dir: %s", cfg.UploadDir)

	// Initialize durable storage
	repo, err := repository.NewSQLite(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	sessions, err := session.NewStore(ctx, repo)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}

	docs, err := document.NewStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}

	// Run tracking and execution
	reg := registry.New()

	var factory engine.Factory
	if cfg.EngineEndpoint != "" {
		factory = &engine.RemoteFactory{Endpoint: cfg.EngineEndpoint, Timeout: cfg.EngineTimeout}
		log.Printf("Reasoning engine: %s", cfg.EngineEndpoint)
	} else {
		factory = &engine.MockFactory{Delay: 50 * time.Millisecond}
		log.Printf("WARN: no engine endpoint configured, using mock engine")
	}
	exec := executor.New(cfg, sessions, docs, reg, factory)

	// Initialize handlers
	h := api.NewHandler(cfg, sessions, docs, reg, exec)
	wsServer := ws.NewServer(cfg, sessions, reg)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)
	wsServer.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Backend stopped")
}
