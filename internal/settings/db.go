package settings

import (
	"context"
	"time"

	"github.com/lk2023060901/signage-backend/internal/pkg/database"
	"gorm.io/gorm/clause"
)

// SystemConfigPO 系统配置表
type SystemConfigPO struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Key         string    `gorm:"column:config_key;type:varchar(100);uniqueIndex;not null"`
	Value       string    `gorm:"column:config_value;type:text;not null"`
	Description string    `gorm:"type:varchar(255)"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (SystemConfigPO) TableName() string {
	return "system_configs"
}

// DBSource 读取 system_configs 表
type DBSource struct {
	db *database.DB
}

// NewDBSource 创建数据库配置源
func NewDBSource(db *database.DB) *DBSource {
	return &DBSource{db: db}
}

// Get implements Source
func (s *DBSource) Get(ctx context.Context, key string) (string, bool, error) {
	var rows []SystemConfigPO
	if err := s.db.GetDBFromContext(ctx).Where("config_key = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

// Set 写入或覆盖配置
func (s *DBSource) Set(ctx context.Context, key, value, description string) error {
	po := &SystemConfigPO{Key: key, Value: value, Description: description}
	return s.db.GetDBFromContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"config_value", "description", "updated_at"}),
	}).Create(po).Error
}
