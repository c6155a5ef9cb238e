package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rangekv/rangekv/admin"
	"github.com/rangekv/rangekv/logger"
	"github.com/rangekv/rangekv/server"
	"github.com/rangekv/rangekv/storage"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "HTTP listen address")
		dataDir  = flag.String("data-dir", "./data", "Data directory path")
		inMemory = flag.Bool("in-memory", false, "Keep all data in memory")
	)

	flag.Parse()

	var cfg *storage.Config
	if *inMemory {
		cfg = storage.TestConfig()
	} else {
		if err := os.MkdirAll(*dataDir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		cfg = storage.DefaultConfig(filepath.Join(*dataDir, "db"))
	}

	store, err := storage.NewRegionStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open region store: %v", err)
	}
	defer store.Shutdown()

	coordinator := admin.NewCoordinator()
	coordinator.RegisterServer(admin.Address{Host: "localhost", Port: 8080})

	srv := server.New(store, coordinator)
	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("rangekvd listening", "addr", *addr, "in_memory", *inMemory)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
