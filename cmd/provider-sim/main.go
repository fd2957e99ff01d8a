package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aerocall/backend/internal/sandbox"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// CLI flags
	var (
		port         = flag.String("port", "8090", "Listen port")
		records      = flag.Int("records", 500, "Number of call records to generate")
		days         = flag.Int("days", 30, "Spread generated records over this many past days")
		seed         = flag.Int64("seed", 0, "Generator seed (0 = time based)")
		clientID     = flag.String("client-id", "sandbox-client", "Accepted OAuth client ID")
		clientSecret = flag.String("client-secret", "sandbox-secret", "Accepted OAuth client secret")
		jwt          = flag.String("jwt", "sandbox-admin-jwt", "Accepted JWT assertion")
		logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Setup logger
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "provider-sim").
		Logger()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	now := time.Now()
	generated := sandbox.NewGenerator(*seed).Generate(*records, now.AddDate(0, 0, -*days), now)
	logger.Info().Int("records", len(generated)).Int64("seed", *seed).Msg("call log generated")

	sim := sandbox.NewServer(sandbox.Credentials{
		ClientID:     *clientID,
		ClientSecret: *clientSecret,
		JWT:          *jwt,
	}, generated, logger)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      sim.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("provider sandbox listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	printUsage(*port, *clientID, *clientSecret, *jwt)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down provider sandbox")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
}

func printUsage(port, clientID, clientSecret, jwt string) {
	fmt.Println()
	fmt.Println("Point the backend at the sandbox:")
	fmt.Printf("  RC_SERVER_URL=http://localhost:%s\n", port)
	fmt.Printf("  RC_CLIENT_ID=%s\n", clientID)
	fmt.Printf("  RC_CLIENT_SECRET=%s\n", clientSecret)
	fmt.Printf("  RC_ADMIN_JWT=%s\n", jwt)
	fmt.Println()
	fmt.Println("Available endpoints:")
	fmt.Printf("  GET  http://localhost:%s/health\n", port)
	fmt.Printf("  POST http://localhost:%s/restapi/oauth/token\n", port)
	fmt.Printf("  GET  http://localhost:%s/restapi/v1.0/account/~/extension/~/call-log\n", port)
	fmt.Printf("  POST http://localhost:%s/restapi/v1.0/account/~/extension/~/ring-out\n", port)
	fmt.Printf("  GET  http://localhost:%s/restapi/v1.0/account/~/recording/{id}/content\n", port)
	fmt.Println()
}
