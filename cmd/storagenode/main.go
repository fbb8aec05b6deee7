package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/closo/backend/internal/config"
	"github.com/closo/backend/internal/storagenode"
)

func main() {
	cfg := config.LoadNode()

	server, err := storagenode.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage node: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down storage node...")
		server.Shutdown()
	}()

	log.Printf("Starting storage node %s (dir %s) on port %d", cfg.NodeID, cfg.StorageDir, cfg.Port)
	if err := server.Listen(); err != nil {
		log.Fatalf("Failed to start storage node: %v", err)
	}
}
