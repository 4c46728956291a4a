package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/binary-options-sim/internal/api"
	"github.com/binary-options-sim/internal/config"
	"github.com/binary-options-sim/internal/engine"
	"github.com/binary-options-sim/internal/notify"
	"github.com/binary-options-sim/internal/store"
	"github.com/binary-options-sim/internal/sweep"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Binary Options Simulator")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded")

	// Initialize persistence and store
	var persister store.Persister
	if cfg.Store.DataDir != "" {
		persister, err = store.NewFilePersister(cfg.Store.DataDir)
		if err != nil {
			log.Fatalf("Failed to initialize persistence: %v", err)
		}
	} else {
		persister = store.MemoryPersister{}
	}

	st, err := store.New(persister)
	if err != nil {
		log.Fatalf("Failed to load store: %v", err)
	}
	log.Println("Store initialized")

	// Initialize trade engine
	eng := engine.New(st, cfg.Engine)
	log.Println("Trade engine initialized")

	// Settlement event channels
	streamEvents := make(chan engine.Settlement, 100)
	notifyEvents := make(chan engine.Settlement, 100)

	// Initialize background sweeper
	sweeper := sweep.New(eng, cfg.Sweep, streamEvents, notifyEvents)
	log.Println("Settlement sweeper initialized")

	// Initialize notification manager
	notifier := notify.NewManager(cfg.Notify, notifyEvents)
	log.Println("Notification manager initialized")

	// Initialize API server
	apiServer := api.NewServer(cfg.Server, eng, streamEvents)
	log.Println("API server initialized")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start all components
	var wg sync.WaitGroup

	// Start sweeper
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Sweeper error: %v", err)
		}
	}()

	// Start notification manager
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := notifier.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Notification manager error: %v", err)
		}
	}()

	// Start API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Run(ctx); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	log.Println("All components started. System running...")

	// Wait for interrupt signal
	<-sigChan
	log.Println("Shutting down...")

	// Cancel context to stop all components
	cancel()

	// Wait for all components to finish
	wg.Wait()
	log.Println("Shutdown complete")
}
