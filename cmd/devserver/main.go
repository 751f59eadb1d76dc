package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskflow/taskflow-cli/internal/config"
	"github.com/taskflow/taskflow-cli/internal/devserver"
	"go.uber.org/zap"
)

func main() {
	seed := flag.Bool("seed", false, "Seed a demo user (demo@taskflow.local / password) with sample tasks")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	server, err := devserver.New(cfg.DBPath, cfg.JWTSecret, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	if *seed {
		if err := server.Seed("demo", "demo@taskflow.local", "password"); err != nil {
			logger.Fatal("Failed to seed demo data", zap.Error(err))
		}
		logger.Info("Seeded demo user", zap.String("email", "demo@taskflow.local"))
	}

	srv := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Dev server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down dev server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Shutdown error", zap.Error(err))
	}
	logger.Info("Dev server stopped")
}
