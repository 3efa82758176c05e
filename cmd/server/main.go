/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the travel booking engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load YAML config if given
  2. Initialize SQLite store
  3. Wire optional Kafka producer and Redis hold lock
  4. Build the services and HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (optional; defaults apply without it)
  -addr    HTTP listen address, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for an in-memory database

OPTIONAL INFRASTRUCTURE:
  Kafka and Redis are wired only when the config names brokers or an
  address. Without them the engine runs standalone: events are dropped
  and holds are skipped; the store-level conditional updates still
  guarantee no overbooking.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the overdue sweep, close producer and database
  4. Exit

EXAMPLES:
  # Run standalone with a file database
  ./server -db="./data/travel.db"

  # Run with full infrastructure
  ./server -config=./config.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - config/:       YAML schema and defaults
*/
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

	"github.com/voyago/travel-engine/api"
	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/cache"
	"github.com/voyago/travel-engine/config"
	"github.com/voyago/travel-engine/events"
	"github.com/voyago/travel-engine/refund"
	"github.com/voyago/travel-engine/settlement"
	"github.com/voyago/travel-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "YAML config path")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.HTTP.Address = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Optional Kafka producer
	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.BookingTopic)
		defer producer.Close()
		log.Printf("Publishing booking events to %s", cfg.Kafka.BookingTopic)
	}

	// Optional Redis hold lock
	var holds *cache.HoldLock
	if cfg.Redis.Addr != "" {
		holds = cache.NewHoldLock(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer holds.Close()
		log.Printf("Using Redis holds at %s", cfg.Redis.Addr)
	}

	// Services
	var bookingOpts []booking.Option
	var settleOpts []settlement.Option
	var refundOpts []refund.Option
	if producer != nil {
		bookingOpts = append(bookingOpts, booking.WithPublisher(producer))
		settleOpts = append(settleOpts, settlement.WithPublisher(producer))
		refundOpts = append(refundOpts, refund.WithPublisher(producer))
	}
	if holds != nil {
		ttl := time.Duration(cfg.Booking.HoldTTLSeconds) * time.Second
		bookingOpts = append(bookingOpts, booking.WithHoldLock(holds, ttl))
	}

	bookings := booking.NewService(store, bookingOpts...)
	provider := settlement.NewRedirectProvider(cfg.Payment.CheckoutBaseURL)
	settle := settlement.NewService(store, provider, settleOpts...)
	refunds := refund.NewService(store, refundOpts...)

	handler := api.NewHandler(store, bookings, settle, refunds)
	router := api.NewRouter(handler, cfg.Auth.JWTSecret, cfg.HTTP.AllowedOrigins)

	// Overdue installment reminders need a publisher to be useful.
	var sweep *api.OverdueSweep
	if producer != nil {
		sweep = api.NewOverdueSweep(store, producer)
		sweep.Start()
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.HTTP.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if sweep != nil {
		sweep.Stop()
	}

	log.Println("Server stopped")
}
