package storage

import (
	"context"
	"fmt"

	"cleancity/backend/internal/config"
	"cleancity/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects PostgreSQL and Redis and migrates the schema.
func Open(ctx context.Context, dbCfg config.DatabaseConfig, redisCfg config.RedisConfig) (*Service, error) {
	db, err := gorm.Open(postgres.Open(dbCfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.Complaint{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewStorageService(db, rdb, redisCfg.Channel), nil
}

// Close releases both connections.
func (s *Service) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
