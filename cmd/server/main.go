package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nightowl-chat/server/internal/server"
	"github.com/nightowl-chat/server/internal/store"
)

func main() {
	fmt.Println("Starting NightOwl relay server...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	history, err := store.Open(cfg.BadgerFilepath)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}

	registry := server.NewRegistry()
	relay := server.NewRelay(registry, history)
	go relay.Run()

	app := server.NewApp(cfg, registry, relay, history)
	httpServer := server.CreateServer(cfg.Port, app.Routes())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server failed: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received %s, shutting down...", sig)
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown did not complete cleanly: %v", err)
	}
	if err := app.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Session shutdown did not complete cleanly: %v", err)
	}
	if err := relay.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Relay shutdown did not complete cleanly: %v", err)
	}
	if err := history.Close(); err != nil {
		log.Printf("Error closing message store: %v", err)
	}
}
