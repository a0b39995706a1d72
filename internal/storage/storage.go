package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gov_queue/internal/config"
	"gov_queue/internal/logging"
	"gov_queue/internal/models"
)

var DB *gorm.DB

// ConnectDatabase открывает подключение к Postgres и сохраняет его в DB.
func ConnectDatabase(cfg config.DatabaseConfig) error {
	db, err := Open(cfg.DSN())
	if err != nil {
		return err
	}
	DB = db
	logging.Info().Str("host", cfg.Host).Str("db", cfg.Name).Msg("Подключение к базе данных успешно")
	return nil
}

// Open открывает gorm-подключение по DSN. Ошибки драйвера переводятся в
// gorm.ErrDuplicatedKey и т.п. (TranslateError).
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}
	return db, nil
}

// Migrate создаёт/обновляет таблицы очереди.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.QueueSession{}, &models.QueueEntry{}); err != nil {
		return fmt.Errorf("ошибка при миграции: %w", err)
	}
	return nil
}

var RedisClient *redis.Client

// InitRedis подключается к Redis и проверяет соединение.
func InitRedis(ctx context.Context, cfg config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis недоступен (%s): %w", cfg.Addr, err)
	}
	RedisClient = client
	return nil
}
