package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/closo/backend/internal/config"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	DB    *gorm.DB
	Redis *redis.Client
)

// Connect opens Postgres and Redis and keeps both as package-level handles.
// Postgres is retried with a growing delay so the backend survives being
// started before the database container is ready.
func Connect(cfg *config.Config) error {
	if err := connectPostgres(cfg); err != nil {
		return err
	}
	return connectRedis(cfg)
}

func connectPostgres(cfg *config.Config) error {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)

	var err error
	const attempts = 12
	for i := 1; i <= attempts; i++ {
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
			DisableForeignKeyConstraintWhenMigrating: true,
		})
		if err == nil {
			break
		}
		wait := time.Duration(i) * time.Second
		if wait > 5*time.Second {
			wait = 5 * time.Second
		}
		log.Printf("Postgres not ready (attempt %d/%d): %v. Next try in %s", i, attempts, err, wait)
		time.Sleep(wait)
	}
	if err != nil {
		return fmt.Errorf("postgres unreachable after %d attempts: %w", attempts, err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Media uploads hold connections longer than plain CRUD traffic, so the
	// pool stays modest and connections are recycled regularly.
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(40)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Println("Postgres connection established")
	return nil
}

func connectRedis(cfg *config.Config) error {
	Redis = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Redis.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("Redis connection established")
	return nil
}

func Close() {
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if Redis != nil {
		Redis.Close()
	}
}
