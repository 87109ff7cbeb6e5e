package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-karaoke/internal/config"
	"ms-karaoke/internal/instance"
	instancedb "ms-karaoke/internal/instance/db"
	"ms-karaoke/internal/instance/instance_api"
	"ms-karaoke/internal/kafka"
	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/realtime"
	"ms-karaoke/internal/session"
	sessiondb "ms-karaoke/internal/session/db"
	"ms-karaoke/internal/session/session_api"
	"ms-karaoke/internal/videosearch"
	"ms-karaoke/internal/videosearch/search_api"
	"ms-karaoke/internal/votes"
	votesdb "ms-karaoke/internal/votes/db"
	"ms-karaoke/internal/votes/vote_api"
	"ms-karaoke/internal/waitlist"
	waitlistdb "ms-karaoke/internal/waitlist/db"
	"ms-karaoke/internal/waitlist/waitlist_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	if cfg.Database.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	// Instance expiry relies on keyspace notifications for expired keys.
	_, err = redisClient.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result()
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		log.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Karaoke Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer kafkaProducer.Close()

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.RequiredTopics()); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, change events stay in-process only")
	}

	emitter := realtime.NewEmitter()
	var broadcaster *realtime.Broadcaster
	if kafkaProducer != nil {
		broadcaster = realtime.NewBroadcaster(emitter, kafkaProducer, log)
	} else {
		broadcaster = realtime.NewBroadcaster(emitter, nil, log)
	}

	waitlistStore := &waitlistdb.DB{Bun: bunDB}
	sessionStore := &sessiondb.DB{Bun: bunDB}
	voteStore := &votesdb.DB{Bun: bunDB}
	instanceStore := &instancedb.DB{Bun: bunDB}

	waitlistService := waitlist.NewService(waitlistStore, broadcaster)
	voteService := votes.NewService(voteStore, sessionStore, broadcaster)
	sessionService := session.NewService(sessionStore, voteService, waitlistService, broadcaster)
	instanceService := instance.NewService(instanceStore, sessionService, waitlistService, voteService,
		redisClient, broadcaster, log)

	client := &http.Client{
		Timeout: cfg.VideoSearch.Timeout,
	}
	videoFetcher := videosearch.NewFetcher(client, cfg.VideoSearch.BaseURL, log)

	waitlistHandler := waitlist_api.NewHandler(waitlistService, log)
	sessionHandler := session_api.NewHandler(sessionService, waitlistService, log)
	voteHandler := vote_api.NewHandler(voteService, log)
	instanceHandler := instance_api.NewHandler(instanceService, log, cfg.App.PublicBaseURL, cfg.App.DefaultInstanceTTL)
	searchHandler := search_api.NewHandler(videoFetcher, log)
	sseHandler := realtime.NewSSEHandler(log, emitter)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/videos/search", searchHandler.Search)

		r.Route("/instances", func(r chi.Router) {
			r.Post("/", instanceHandler.Create)

			r.Route("/{instanceID}", func(r chi.Router) {
				r.Get("/", instanceHandler.Get)
				r.Post("/reset", instanceHandler.Reset)
				r.Get("/join-qr", instanceHandler.JoinQR)
				r.Get("/events", sseHandler.HandleInstanceEvents)

				r.Route("/waitlist", func(r chi.Router) {
					r.Post("/", waitlistHandler.Enqueue)
					r.Get("/", waitlistHandler.List)
					r.Post("/{entryID}/reorder", waitlistHandler.Reorder)
					r.Delete("/{entryID}", waitlistHandler.Remove)
					r.Delete("/registrant/{registrant}", waitlistHandler.Withdraw)
				})

				r.Route("/performances", func(r chi.Router) {
					r.Post("/", sessionHandler.Start)
					r.Post("/promote", sessionHandler.Promote)
					r.Get("/current", sessionHandler.Current)
					r.Post("/{performanceID}/change-video", sessionHandler.ChangeVideo)
					r.Post("/{performanceID}/close", sessionHandler.Close)
				})

				r.Post("/votes", voteHandler.Submit)
				r.Get("/rankings", sessionHandler.Rankings)
			})
		})
	})
	log.Info("ROUTER", "Routes registered under /api/instances")

	// No write timeout: the SSE feed holds its response open.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	log.Info("REDIS", "Starting instance expiry watcher")
	watcher := instance.NewExpiryWatcher(redisClient, instanceService, log)
	watcher.Start(ctx)

	go func() {
		log.Info("HTTP", fmt.Sprintf("Karaoke Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Karaoke Service shutdown complete")
	}
}
