/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize structured logger
  3. Initialize SQLite store
  4. Wire notification sinks (log always, Kafka when brokers configured)
  5. Build ledger, coordinator, processor, payroll reader
  6. Configure HTTP router and allocation scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port             HTTP server port (default: 8080)
  -db               SQLite database path (default: leave.db)
                    Use ":memory:" for an in-memory database
  -jwt-secret       HS256 secret for bearer tokens (required)
  -kafka-brokers    Comma-separated broker list (empty disables Kafka)
  -kafka-topic      Topic for workflow events (default: leave-events)
  -reset-interval   Allocation scheduler check interval (default: 1h)
  -annual-days      Policy-year allocation for annual leave (default: 20)
  -sick-days        Policy-year allocation for sick leave (default: 10)
  -casual-days      Policy-year allocation for casual leave (default: 5)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the allocation scheduler
  4. Flush the Kafka writer and close the database
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db" -jwt-secret="dev-secret"

  # Run with Kafka notifications
  ./server -jwt-secret="dev-secret" -kafka-brokers="localhost:9092"
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
	"github.com/warp/leave-engine/payroll"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "leave.db", "SQLite database path")
	jwtSecret := flag.String("jwt-secret", "", "HS256 secret for bearer tokens")
	kafkaBrokers := flag.String("kafka-brokers", "", "comma-separated Kafka broker list")
	kafkaTopic := flag.String("kafka-topic", "leave-events", "Kafka topic for workflow events")
	resetInterval := flag.Duration("reset-interval", time.Hour, "allocation scheduler check interval")
	annualDays := flag.Float64("annual-days", 20, "policy-year allocation for annual leave")
	sickDays := flag.Float64("sick-days", 10, "policy-year allocation for sick leave")
	casualDays := flag.Float64("casual-days", 5, "policy-year allocation for casual leave")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *jwtSecret == "" {
		logger.Fatal("-jwt-secret is required")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Notification sinks
	sinks := notify.Multi{notify.NewLogSink(logger)}
	var kafkaSink *notify.KafkaSink
	if *kafkaBrokers != "" {
		kafkaSink = notify.NewKafkaSink(strings.Split(*kafkaBrokers, ","), *kafkaTopic, logger)
		sinks = append(sinks, kafkaSink)
		logger.Info("kafka notifications enabled",
			zap.String("brokers", *kafkaBrokers),
			zap.String("topic", *kafkaTopic),
		)
	}

	// Domain wiring
	ledger := leave.NewLedger(store, logger)
	coordinator := leave.NewCoordinator(ledger, store, sinks, logger)
	processor := leave.NewProcessor(ledger, store, sinks, logger)
	reader := payroll.NewReader(store)

	handler := api.NewHandler(coordinator, processor, ledger, store, reader, logger)
	router := api.NewRouter(handler, *jwtSecret)

	// Allocation scheduler
	scheduler := api.NewAllocationScheduler(ledger, store, map[leave.Category]decimal.Decimal{
		leave.CategoryAnnual: decimal.NewFromFloat(*annualDays),
		leave.CategorySick:   decimal.NewFromFloat(*sickDays),
		leave.CategoryCasual: decimal.NewFromFloat(*casualDays),
	}, logger)
	scheduler.CheckInterval = *resetInterval
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Warn("failed to close kafka writer", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}
