package data

import (
	"context"
	"time"

	"github.com/lk2023060901/signage-backend/internal/assignment/biz"
	"github.com/lk2023060901/signage-backend/internal/pkg/database"
)

// AssignmentPO 设备分配表, 每台设备最多一条 removed_at 为空的记录
type AssignmentPO struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	DeviceID   int64      `gorm:"not null;index:idx_device_assignments_device_id;uniqueIndex:idx_device_assignments_open,where:removed_at IS NULL"`
	LocationID int64      `gorm:"not null;index:idx_device_assignments_location_id"`
	AssignedAt time.Time  `gorm:"not null"`
	RemovedAt  *time.Time
	AssignedBy int64      `gorm:"not null"`
	RemovedBy  *int64
	Notes      string     `gorm:"type:text;not null;default:''"`
}

func (AssignmentPO) TableName() string {
	return "device_assignments"
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{&AssignmentPO{}}
}

// AssignmentRepo 分配仓储实现
type AssignmentRepo struct {
	db *database.DB
}

// NewAssignmentRepo 创建分配仓储
func NewAssignmentRepo(db *database.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

var _ biz.AssignmentRepo = (*AssignmentRepo)(nil)

// Open 当前分配
func (r *AssignmentRepo) Open(ctx context.Context, deviceID int64) (*biz.DeviceAssignment, error) {
	var pos []AssignmentPO
	if err := r.db.GetDBFromContext(ctx).
		Where("device_id = ? AND removed_at IS NULL", deviceID).
		Limit(1).
		Find(&pos).Error; err != nil {
		return nil, err
	}
	if len(pos) == 0 {
		return nil, nil
	}
	return toAssignment(&pos[0]), nil
}

// Close 关闭分配, 已关闭的记录不会被再次修改
func (r *AssignmentRepo) Close(ctx context.Context, id int64, at time.Time, by int64) error {
	result := r.db.GetDBFromContext(ctx).Model(&AssignmentPO{}).
		Where("id = ? AND removed_at IS NULL", id).
		Updates(map[string]interface{}{
			"removed_at": at,
			"removed_by": by,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrAssignmentConflict
	}
	return nil
}

// Create 创建分配
func (r *AssignmentRepo) Create(ctx context.Context, a *biz.DeviceAssignment) error {
	po := &AssignmentPO{
		DeviceID:   a.DeviceID,
		LocationID: a.LocationID,
		AssignedAt: a.AssignedAt,
		AssignedBy: a.AssignedBy,
		Notes:      a.Notes,
	}
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return biz.ErrAssignmentConflict
		}
		return err
	}
	a.ID = po.ID
	return nil
}

// History 按 assigned_at, id 倒序
func (r *AssignmentRepo) History(ctx context.Context, deviceID int64) ([]*biz.DeviceAssignment, error) {
	var pos []AssignmentPO
	if err := r.db.GetDBFromContext(ctx).
		Where("device_id = ?", deviceID).
		Order("assigned_at DESC, id DESC").
		Find(&pos).Error; err != nil {
		return nil, err
	}

	out := make([]*biz.DeviceAssignment, 0, len(pos))
	for i := range pos {
		out = append(out, toAssignment(&pos[i]))
	}
	return out, nil
}

func toAssignment(po *AssignmentPO) *biz.DeviceAssignment {
	return &biz.DeviceAssignment{
		ID:         po.ID,
		DeviceID:   po.DeviceID,
		LocationID: po.LocationID,
		AssignedAt: po.AssignedAt,
		RemovedAt:  po.RemovedAt,
		AssignedBy: po.AssignedBy,
		RemovedBy:  po.RemovedBy,
		Notes:      po.Notes,
	}
}
