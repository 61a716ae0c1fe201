// Command flush-job runs one flush pass over the live conversation store
// and exits. Intended to be invoked from an external cron on the flush
// cadence; deployments can instead enable the in-process scheduler in the
// conversation service.
package main

import (
	"context"
	"log"
	"time"

	"supportdesk-backend/internal/database"
	postgresRepo "supportdesk-backend/internal/repository/postgres"
	redisRepo "supportdesk-backend/internal/repository/redis"
	"supportdesk-backend/internal/scheduler"
	"supportdesk-backend/pkg/constants"
	"supportdesk-backend/pkg/env"
	"supportdesk-backend/pkg/logger"
	"supportdesk-backend/pkg/metrics"
)

func main() {
	// 1. Setup structured logging
	logger.InitDefault()
	defer logger.Sync()

	// 2. Connect to Redis
	database.InitRedisMetrics()

	redisConfig := &database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 5,
		Timeout:  5 * time.Second,
	}

	redisDB, err := database.NewRedisDB(redisConfig)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisDB.Close()

	// 3. Connect to Postgres (archive store)
	postgresConfig := &database.PostgresConfig{
		Host:     env.GetString("POSTGRES_HOST", "localhost"),
		Port:     env.GetInt("POSTGRES_PORT", 5432),
		User:     env.GetString("POSTGRES_USER", "supportdesk"),
		Password: env.GetStringFromFile("POSTGRES_PASSWORD", ""),
		Database: env.GetString("POSTGRES_DATABASE", "supportdesk_db"),
		SSLMode:  env.GetString("POSTGRES_SSLMODE", "disable"),
		MaxConns: 5,
	}

	postgresDB, err := database.NewPostgresDB(context.Background(), postgresConfig)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgresDB.Close()

	// 4. Wire stores and run one pass
	liveRepo := redisRepo.NewLiveConversationRepository(redisDB)
	archiveRepo := postgresRepo.NewConversationArchiveRepository(postgresDB.Pool)

	appMetrics := metrics.NewMetrics("flush-job")

	flushScheduler := scheduler.NewScheduler(
		liveRepo,
		archiveRepo,
		env.GetDuration("FLUSH_IDLE_THRESHOLD", constants.CacheIdleThreshold),
		env.GetDuration("FLUSH_INTERVAL", constants.FlushInterval),
		appMetrics,
		logger.Log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), env.GetDuration("FLUSH_JOB_TIMEOUT", 5*time.Minute))
	defer cancel()

	flushScheduler.Run(ctx)

	// 5. Optional archive retention: prune archived conversations older
	// than the configured window. Zero disables pruning.
	if retention := env.GetDuration("ARCHIVE_RETENTION", 0); retention > 0 {
		cutoff := time.Now().UTC().Add(-retention)
		deleted, err := archiveRepo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			log.Printf("Archive retention pass failed: %v", err)
		} else {
			log.Printf("Archive retention pass deleted %d conversations older than %s", deleted, cutoff.Format(time.RFC3339))
		}
	}

	log.Println("Flush job finished")
}
