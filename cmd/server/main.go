package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/roomrelay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("Starting roomrelay server...")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment overrides from .env")
	}

	config := server.NewConfigFromEnv()

	registry := server.NewRegistry(config)
	registry.Start()

	mux := server.SetupRoutes(registry)
	httpServer := server.CreateServer(config.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received signal %s, shutting down...", sig)
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown did not complete cleanly: %v", err)
	}
	if err := registry.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Registry shutdown did not complete cleanly: %v", err)
	}
}
