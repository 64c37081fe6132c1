// Package main provides the entry point for the voice mesh conferencing client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/Raikerian/go-voice-mesh/internal/app"
	"github.com/Raikerian/go-voice-mesh/internal/conference"
	"github.com/Raikerian/go-voice-mesh/internal/config"
	"github.com/Raikerian/go-voice-mesh/internal/device"
	"github.com/Raikerian/go-voice-mesh/internal/infrastructure"
	"github.com/Raikerian/go-voice-mesh/internal/metrics"
	"github.com/Raikerian/go-voice-mesh/internal/session"
	"github.com/Raikerian/go-voice-mesh/internal/signaling"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,
		metrics.Module,

		// Conference modules
		signaling.Module,
		conference.Module,
		session.Module,
		device.Module,

		fx.Supply(configPath),
		fx.WithLogger(infrastructure.NewFxLogger),
	)
	if err := application.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build application: %v\n", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	err := application.Start(startCtx)
	cancelStart()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal: %s, leaving the conference.\n", sig)
	case sig := <-application.Wait():
		fmt.Printf("Shutdown requested with exit code %d.\n", sig.ExitCode)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Application has shut down gracefully.")
}
