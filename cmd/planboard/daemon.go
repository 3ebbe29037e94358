package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/planboard/internal/audit"
	"github.com/fentz26/planboard/internal/controlplane"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/scheduler"
	"github.com/fentz26/planboard/internal/store"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the planboard daemon",
	Long:  `Starts the planboard daemon which serves the admin and client HTTP API and runs the milestone sweeper.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (default from config, 127.0.0.1:7466)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (default from config, ~/.planboard/planboard.db)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting planboard daemon...")

	if listenAddr == "" {
		listenAddr = cfg.Listen
	}
	if dbPath == "" {
		dbPath = cfg.DB
	}

	// Initialize store
	s, err := store.New(dbPath)
	if err != nil {
		return err
	}

	// Initialize components
	pdr := audit.NewPDRWriter(s)
	engine := lifecycle.NewEngine(nil)

	// Create service and server
	service := controlplane.NewService(s, pdr, engine)
	server := controlplane.NewServer(service, s, listenAddr)

	var sched *scheduler.Scheduler
	if cfg.Sweep.Enabled {
		sched = scheduler.New(s, engine, pdr, &cfg.Sweep)
		server.SetScheduler(sched)
		sched.Start()
	} else {
		log.Println("Milestone sweeper disabled")
	}

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			if sched != nil {
				sched.Stop()
			}
			s.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// The sweeper writes through the store, so it stops before the DB closes.
	if sched != nil {
		log.Println("Stopping milestone sweeper...")
		sched.Stop()
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
