package data

import (
	"context"
	"time"

	"github.com/lk2023060901/signage-backend/internal/directory/biz"
	"github.com/lk2023060901/signage-backend/internal/pkg/database"
)

// TenantPO 租户表
type TenantPO struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"size:255;not null"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (TenantPO) TableName() string {
	return "tenants"
}

// LocationPO 位置表
type LocationPO struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	TenantID  int64     `gorm:"not null;index:idx_locations_tenant_id"`
	Name      string    `gorm:"size:255;not null"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (LocationPO) TableName() string {
	return "locations"
}

// DevicePO 设备表
type DevicePO struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	TenantID   int64      `gorm:"not null;index:idx_devices_tenant_id"`
	Name       string     `gorm:"size:255;not null"`
	Serial     string     `gorm:"size:100;index"`
	Active     bool       `gorm:"not null"`
	LastSyncAt *time.Time
	LastSyncIP string     `gorm:"size:64"`
	CreatedAt  time.Time  `gorm:"not null"`
}

func (DevicePO) TableName() string {
	return "devices"
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{&TenantPO{}, &LocationPO{}, &DevicePO{}}
}

// DirectoryRepo 目录仓储实现
type DirectoryRepo struct {
	db *database.DB
}

// NewDirectoryRepo 创建目录仓储
func NewDirectoryRepo(db *database.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

var _ biz.DirectoryRepo = (*DirectoryRepo)(nil)

// GetTenant 根据ID获取租户
func (r *DirectoryRepo) GetTenant(ctx context.Context, id int64) (*biz.Tenant, error) {
	var po TenantPO
	if err := r.db.GetDBFromContext(ctx).First(&po, id).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrTenantNotFound
		}
		return nil, err
	}
	return toTenant(&po), nil
}

// ListTenants 列出全部租户
func (r *DirectoryRepo) ListTenants(ctx context.Context) ([]*biz.Tenant, error) {
	var pos []TenantPO
	if err := r.db.GetDBFromContext(ctx).Order("id ASC").Find(&pos).Error; err != nil {
		return nil, err
	}
	tenants := make([]*biz.Tenant, 0, len(pos))
	for i := range pos {
		tenants = append(tenants, toTenant(&pos[i]))
	}
	return tenants, nil
}

// GetLocation 根据ID获取位置
func (r *DirectoryRepo) GetLocation(ctx context.Context, id int64) (*biz.Location, error) {
	var po LocationPO
	if err := r.db.GetDBFromContext(ctx).First(&po, id).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrLocationNotFound
		}
		return nil, err
	}
	return toLocation(&po), nil
}

// GetLocations 批量获取位置, 不存在的ID不出现在结果中
func (r *DirectoryRepo) GetLocations(ctx context.Context, ids []int64) (map[int64]*biz.Location, error) {
	out := make(map[int64]*biz.Location, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var pos []LocationPO
	if err := r.db.GetDBFromContext(ctx).Where("id IN ?", ids).Find(&pos).Error; err != nil {
		return nil, err
	}
	for i := range pos {
		out[pos[i].ID] = toLocation(&pos[i])
	}
	return out, nil
}

// GetDevice 根据ID获取设备
func (r *DirectoryRepo) GetDevice(ctx context.Context, id int64) (*biz.Device, error) {
	var po DevicePO
	if err := r.db.GetDBFromContext(ctx).First(&po, id).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrDeviceNotFound
		}
		return nil, err
	}
	return toDevice(&po), nil
}

// TouchDevice 记录设备最近同步时间和来源IP
func (r *DirectoryRepo) TouchDevice(ctx context.Context, id int64, at time.Time, ip string) error {
	result := r.db.GetDBFromContext(ctx).Model(&DevicePO{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_at": at,
			"last_sync_ip": ip,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrDeviceNotFound
	}
	return nil
}

// CreateTenant 创建租户
func (r *DirectoryRepo) CreateTenant(ctx context.Context, t *biz.Tenant) error {
	po := &TenantPO{Name: t.Name, Active: t.Active}
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	t.ID = po.ID
	return nil
}

// CreateLocation 创建位置
func (r *DirectoryRepo) CreateLocation(ctx context.Context, l *biz.Location) error {
	po := &LocationPO{TenantID: l.TenantID, Name: l.Name, Active: l.Active}
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	l.ID = po.ID
	return nil
}

// CreateDevice 创建设备
func (r *DirectoryRepo) CreateDevice(ctx context.Context, d *biz.Device) error {
	po := &DevicePO{TenantID: d.TenantID, Name: d.Name, Serial: d.Serial, Active: d.Active}
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	d.ID = po.ID
	return nil
}

func toTenant(po *TenantPO) *biz.Tenant {
	return &biz.Tenant{ID: po.ID, Name: po.Name, Active: po.Active}
}

func toLocation(po *LocationPO) *biz.Location {
	return &biz.Location{ID: po.ID, TenantID: po.TenantID, Name: po.Name, Active: po.Active}
}

func toDevice(po *DevicePO) *biz.Device {
	return &biz.Device{
		ID:         po.ID,
		TenantID:   po.TenantID,
		Name:       po.Name,
		Serial:     po.Serial,
		Active:     po.Active,
		LastSyncAt: po.LastSyncAt,
		LastSyncIP: po.LastSyncIP,
	}
}
