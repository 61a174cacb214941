package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/mmaven/paper-trader/internal/api"
	"github.com/mmaven/paper-trader/internal/autotrader"
	"github.com/mmaven/paper-trader/internal/catalog"
	"github.com/mmaven/paper-trader/internal/config"
	"github.com/mmaven/paper-trader/internal/kafka"
	"github.com/mmaven/paper-trader/internal/ledger"
	"github.com/mmaven/paper-trader/internal/oracle"
	"github.com/mmaven/paper-trader/internal/redis"
	"github.com/mmaven/paper-trader/internal/store"
)

func main() {
	// Load .env if present; real env vars take precedence
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// Connect to database
	st, err := store.NewPostgres(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()
	log.Println("Connected to PostgreSQL database")

	// Run migrations
	if err := runMigrations(cfg.Database.MigrationsPath, cfg.Database.ConnectionString()); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Stock catalog, optionally seeded from a listing CSV
	cat := catalog.NewPostgres(st.Conn())
	if cfg.Catalog.CSVPath != "" {
		count, err := cat.ImportCSV(context.Background(), cfg.Catalog.CSVPath)
		if err != nil {
			log.Printf("Warning: Failed to import stock listing: %v", err)
		} else {
			log.Printf("Imported %d stocks from %s", count, cfg.Catalog.CSVPath)
		}
	}

	// Connect to Redis
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v (continuing without cache)", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Connected to Redis cache")
	}

	// Price oracle, cached when Redis is up
	baseURL := cfg.Oracle.BaseURL
	if baseURL == "" {
		baseURL = oracle.DefaultTWSEBaseURL
	}
	cacheTTL := time.Duration(cfg.Oracle.CacheTTLSeconds) * time.Second
	var priceSource oracle.PriceSource = oracle.NewTWSE(baseURL,
		time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)
	if redisClient != nil {
		priceSource = oracle.NewCached(priceSource, redisClient, cacheTTL)
	}

	// Create Kafka producer
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TradesTopic)
	defer producer.Close()
	log.Printf("Kafka producer initialized (brokers: %v)", cfg.Kafka.Brokers)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create and start Kafka consumer that warms the quote cache
	var quotesConsumer *kafka.QuotesConsumer
	if redisClient != nil {
		quotesConsumer = kafka.NewQuotesConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.QuotesTopic,
			cfg.Kafka.ConsumerGroup,
			redisClient,
			cacheTTL,
		)
		go func() {
			log.Printf("Starting Kafka quotes consumer for topic: %s (group: %s-quotes)",
				cfg.Kafka.QuotesTopic, cfg.Kafka.ConsumerGroup)
			if err := quotesConsumer.Start(ctx); err != nil {
				log.Printf("Kafka quotes consumer error: %v", err)
			}
		}()
	}

	// Ledger engine and auto-trader
	engine := ledger.New(st, cat, priceSource)
	trader := autotrader.New(engine, st, cat, priceSource)

	// Set up HTTP handler and routes. A nil *redis.Client must not reach
	// the Pinger interface or the health check's nil test breaks.
	var redisPinger api.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	handler := api.NewHandler(engine, trader, st, priceSource, producer, st, redisPinger)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Cancel context to stop Kafka consumer
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if quotesConsumer != nil {
		if err := quotesConsumer.Close(); err != nil {
			log.Printf("Error closing Kafka quotes consumer: %v", err)
		}
	}

	log.Println("Server stopped")
}

func runMigrations(migrationsPath, databaseURL string) error {
	m, err := migrate.New(migrationsPath, databaseURL)
	if err != nil {
		return err
	}

	// Apply all available migrations up to the latest version
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err == migrate.ErrNoChange {
		log.Println("No migrations to apply; database is up to date.")
	}
	return nil
}
