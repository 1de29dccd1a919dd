package data

import (
	"context"
	"fmt"
	"time"

	assetdata "github.com/lk2023060901/signage-backend/internal/asset/data"
	"github.com/lk2023060901/signage-backend/internal/asset/storage"
	assignmentdata "github.com/lk2023060901/signage-backend/internal/assignment/data"
	"github.com/lk2023060901/signage-backend/internal/conf"
	directorydata "github.com/lk2023060901/signage-backend/internal/directory/data"
	"github.com/lk2023060901/signage-backend/internal/pkg/database"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/minio"
	"github.com/lk2023060901/signage-backend/internal/pkg/redis"
	playlistdata "github.com/lk2023060901/signage-backend/internal/playlist/data"
	"github.com/lk2023060901/signage-backend/internal/settings"
	"go.uber.org/zap"
)

// Data 基础设施连接
type Data struct {
	DB    *database.DB
	Redis *redis.Client // redis.enabled=false 时为 nil
	MinIO *minio.Client // minio.enabled=false 时为 nil
}

// Models 全部需要迁移的表
func Models() []interface{} {
	var models []interface{}
	models = append(models, directorydata.Models()...)
	models = append(models, assetdata.Models()...)
	models = append(models, playlistdata.Models()...)
	models = append(models, assignmentdata.Models()...)
	models = append(models, &settings.SystemConfigPO{})
	return models
}

// Migrate 无视 automigrate 开关, 供命令行工具使用
func Migrate(db *database.DB) error {
	return db.DB.AutoMigrate(Models()...)
}

// NewData 建立数据库, Redis 和 MinIO 连接
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	if config.Database.AutoMigrate {
		if err := db.AutoMigrate(Models()...); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	d := &Data{DB: db}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if d.Redis != nil {
			if err := d.Redis.Close(); err != nil {
				log.Warn("failed to close redis", zap.Error(err))
			}
		}
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}

	if config.Redis.Enabled {
		d.Redis, err = redis.New(&config.Redis.Config, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if config.MinIO.Enabled {
		d.MinIO, err = initMinIO(config, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to init minio: %w", err)
		}
	}

	return d, cleanup, nil
}

func initMinIO(config *conf.Config, log *logger.Logger) (*minio.Client, error) {
	client, err := minio.NewClient(&config.MinIO.Config, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.EnsureBucket(ctx, config.MinIO.Bucket); err != nil {
		return nil, err
	}
	return client, nil
}

// Volume 按 media.storage 选择存储卷, localRoot 为本地卷根目录
func (d *Data) Volume(config *conf.Config, localRoot string) (storage.Volume, error) {
	switch config.Media.Storage {
	case conf.StorageMinIO:
		if d.MinIO == nil {
			return nil, fmt.Errorf("minio storage selected but minio is disabled")
		}
		return storage.NewMinIOVolume(d.MinIO, config.MinIO.Bucket, config.MinIO.Prefix), nil
	default:
		return storage.NewLocalVolume(localRoot), nil
	}
}
