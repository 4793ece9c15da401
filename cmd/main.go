/**
 * @description
 * This is the main entry point for the print-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the message broker, the operator session store, repositories, the
 * core application service, the reconciliation cron jobs, and the HTTP server.
 * It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/robfig/cron/v3: Scheduling for the reconciliation sweeps.
 * - internal/api, internal/app, internal/config, internal/session, internal/store:
 *   Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/autoprint/print-service/internal/api"
	"github.com/autoprint/print-service/internal/app"
	"github.com/autoprint/print-service/internal/config"
	"github.com/autoprint/print-service/internal/session"
	"github.com/autoprint/print-service/internal/store"
	"github.com/autoprint/print-service/pkg/rabbitmq"
)

func main() {
	// Load a local .env file if present before viper reads the environment.
	_ = godotenv.Load()

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting print-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Pool sizing for peak hours at the print counter.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish lifecycle events.
	// This service only publishes, so no consumer is wired.
	var producer rabbitmq.Publisher
	if eventProducer, prodErr := rabbitmq.NewEventProducer(cfg.RabbitMQURL); prodErr != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", prodErr)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Operator sessions live in Redis when configured, otherwise in memory.
	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour
	var sessions session.Store = session.NewMemoryStore(sessionTTL)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory sessions\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory sessions\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				sessions = session.NewRedisStore(redisClient, cfg.RedisSessionPrefix, sessionTTL)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	printService := app.NewService(
		repository,
		sessions,
		producer,
		cfg.CostPerPagePoisha,
		cfg.Currency,
		time.Duration(cfg.HoldMaxAgeMinutes)*time.Minute,
	)

	// Reconciliation cron jobs: stale holds back to the queue, expired
	// sessions out of the store.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.HoldSweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := printService.ResumeStaleHolds(ctx); err != nil {
			log.Printf("level=warn component=sweeper msg=\"stale hold sweep failed\" err=%v", err)
		}
	}); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"hold sweep schedule invalid\" schedule=%q err=%v", cfg.HoldSweepSchedule, err)
	}
	if _, err := scheduler.AddFunc(cfg.SessionSweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		printService.SweepSessions(ctx)
	}); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"session sweep schedule invalid\" schedule=%q err=%v", cfg.SessionSweepSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize the API handlers and router.
	handlers := api.NewPrintServiceHandlers(printService)
	router := api.PrintServiceRoutes(handlers, printService, api.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		InternalAPIKey: cfg.InternalAPIKey,
		AllowedOrigins: cfg.OriginList(),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
